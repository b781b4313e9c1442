// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package health

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/supervisor"
)

// Registry owns every monitored service's Checker, supervised as a
// reliability-layer service on the shared SupervisorTree — one task per
// service, per spec.md §4.8.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]*Checker
	tokens   map[string]suture.ServiceToken
	tree     *supervisor.SupervisorTree
	store    *redis.Client
	prefix   string
	cfg      config.HealthConfig
}

// NewRegistry builds a Registry. store may be nil to skip snapshot
// persistence (tests that only exercise per-checker status derivation).
func NewRegistry(tree *supervisor.SupervisorTree, store *redis.Client, prefix string, cfg config.HealthConfig) *Registry {
	if prefix == "" {
		prefix = "taxpoynt:message_router"
	}
	return &Registry{
		checkers: make(map[string]*Checker),
		tokens:   make(map[string]suture.ServiceToken),
		tree:     tree,
		store:    store,
		prefix:   prefix,
		cfg:      cfg,
	}
}

// Register adds a new monitored service and starts its check loop
// immediately under the reliability supervision layer.
func (r *Registry) Register(name string, fn CheckFunc) *Checker {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := NewChecker(name, fn, r.cfg)
	r.checkers[name] = c
	if r.tree != nil {
		r.tokens[name] = r.tree.AddReliabilityService(c)
	}
	return c
}

// Unregister stops and removes a monitored service's check loop.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token, ok := r.tokens[name]; ok && r.tree != nil {
		r.tree.RemoveAndWait(token, 5*time.Second)
		delete(r.tokens, name)
	}
	delete(r.checkers, name)
}

// Start launches the aggregator loop; check loops are already running
// per-service via Register.
func (r *Registry) Start(ctx context.Context) {
	go r.runAggregator(ctx, r.cfg.AggregatorTick, r.cfg.SnapshotTTL)
}

// GetHealthStatus returns the current aggregate snapshot across every
// registered service, per spec.md §4.8's getHealthStatus() operation.
func (r *Registry) GetHealthStatus() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make(map[string]domain.HealthMetrics, len(r.checkers))
	for name, c := range r.checkers {
		services[name] = c.Snapshot()
	}
	return Snapshot{
		Overall:   aggregate(services),
		Services:  services,
		Timestamp: time.Now(),
	}
}
