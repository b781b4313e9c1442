// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package router

import (
	"sync"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// Backend is the endpoint/rule capability a Router delegates storage to.
// The in-memory backend below serves C4; internal/redisrouter supplies a
// shared-store-backed implementation for C5. Both satisfy the same
// interface so Router itself carries no knowledge of where state lives.
type Backend interface {
	SaveEndpoint(ep *domain.ServiceEndpoint) error
	DeleteEndpoint(id string) error
	Endpoint(id string) (*domain.ServiceEndpoint, bool)
	Endpoints() []*domain.ServiceEndpoint

	SaveRule(rule *domain.RoutingRule) error
	DeleteRule(id string) error
	Rules() []*domain.RoutingRule
}

// memoryBackend is the default in-process Backend used by C4.
type memoryBackend struct {
	mu        sync.RWMutex
	endpoints map[string]*domain.ServiceEndpoint
	rules     map[string]*domain.RoutingRule
}

// NewMemoryBackend constructs the in-process default Backend.
func NewMemoryBackend() Backend {
	return &memoryBackend{
		endpoints: make(map[string]*domain.ServiceEndpoint),
		rules:     make(map[string]*domain.RoutingRule),
	}
}

func (b *memoryBackend) SaveEndpoint(ep *domain.ServiceEndpoint) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoints[ep.ID] = ep
	return nil
}

func (b *memoryBackend) DeleteEndpoint(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.endpoints, id)
	return nil
}

func (b *memoryBackend) Endpoint(id string) (*domain.ServiceEndpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.endpoints[id]
	return ep, ok
}

func (b *memoryBackend) Endpoints() []*domain.ServiceEndpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.ServiceEndpoint, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		out = append(out, ep)
	}
	return out
}

func (b *memoryBackend) SaveRule(rule *domain.RoutingRule) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules[rule.ID] = rule
	return nil
}

func (b *memoryBackend) DeleteRule(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rules, id)
	return nil
}

func (b *memoryBackend) Rules() []*domain.RoutingRule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.RoutingRule, 0, len(b.rules))
	for _, r := range b.rules {
		out = append(out, r)
	}
	return out
}
