// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package redisrouter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/router"
)

// cacheTTL is the local read-through cache lifetime (spec: 60s).
const cacheTTL = 60 * time.Second

// backend is the shared-store-backed router.Backend for C5. It mirrors
// every table to a Redis hash under a keyset prefix and serves reads from a
// local cache refreshed every cacheTTL.
type backend struct {
	client *redis.Client
	keys   keyset

	// callbacks holds in-process Callback funcs for endpoints this
	// replica itself registered, keyed by endpoint id, since a Callback
	// cannot round-trip through Redis.
	callbackMu sync.RWMutex
	callbacks  map[string]domain.Callback

	mu            sync.RWMutex
	endpoints     map[string]*domain.ServiceEndpoint
	rules         map[string]*domain.RoutingRule
	endpointsAt   time.Time
	rulesAt       time.Time
}

// newBackend constructs a redis-backed Backend. It does not perform I/O;
// call refreshEndpoints/refreshRules (or let the first read trigger them)
// once the client is reachable.
func newBackend(client *redis.Client, prefix string) *backend {
	return &backend{
		client:    client,
		keys:      newKeyset(prefix),
		callbacks: make(map[string]domain.Callback),
		endpoints: make(map[string]*domain.ServiceEndpoint),
		rules:     make(map[string]*domain.RoutingRule),
	}
}

var _ router.Backend = (*backend)(nil)

func (b *backend) SaveEndpoint(ep *domain.ServiceEndpoint) error {
	if ep.Callback != nil {
		b.callbackMu.Lock()
		b.callbacks[ep.ID] = ep.Callback
		b.callbackMu.Unlock()
	}

	rec := recordFromEndpoint(ep)
	blob, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := b.client.HSet(ctx, b.keys.serviceEndpoints(), ep.ID, blob).Err(); err != nil {
		return err
	}
	if err := b.client.HSet(ctx, b.keys.roleMappings(), string(ep.Role), "").Err(); err != nil {
		logging.Warn().Str("endpoint", ep.ID).Err(err).Msg("role mapping write failed")
	}

	b.mu.Lock()
	b.endpoints[ep.ID] = ep
	b.mu.Unlock()
	return nil
}

func (b *backend) DeleteEndpoint(id string) error {
	ctx := context.Background()
	if err := b.client.HDel(ctx, b.keys.serviceEndpoints(), id).Err(); err != nil {
		return err
	}
	b.callbackMu.Lock()
	delete(b.callbacks, id)
	b.callbackMu.Unlock()

	b.mu.Lock()
	delete(b.endpoints, id)
	b.mu.Unlock()
	return nil
}

func (b *backend) Endpoint(id string) (*domain.ServiceEndpoint, bool) {
	b.ensureEndpointsFresh()
	b.mu.RLock()
	defer b.mu.RUnlock()
	ep, ok := b.endpoints[id]
	return ep, ok
}

func (b *backend) Endpoints() []*domain.ServiceEndpoint {
	b.ensureEndpointsFresh()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.ServiceEndpoint, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		out = append(out, ep)
	}
	return out
}

func (b *backend) SaveRule(rule *domain.RoutingRule) error {
	blob, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := b.client.HSet(ctx, b.keys.routingRules(), rule.ID, blob).Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.rules[rule.ID] = rule
	b.mu.Unlock()
	return nil
}

func (b *backend) DeleteRule(id string) error {
	ctx := context.Background()
	if err := b.client.HDel(ctx, b.keys.routingRules(), id).Err(); err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.rules, id)
	b.mu.Unlock()
	return nil
}

func (b *backend) Rules() []*domain.RoutingRule {
	b.ensureRulesFresh()
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*domain.RoutingRule, 0, len(b.rules))
	for _, r := range b.rules {
		out = append(out, r)
	}
	return out
}

func (b *backend) ensureEndpointsFresh() {
	b.mu.RLock()
	stale := time.Since(b.endpointsAt) > cacheTTL
	b.mu.RUnlock()
	if stale {
		b.refreshEndpoints()
	}
}

func (b *backend) ensureRulesFresh() {
	b.mu.RLock()
	stale := time.Since(b.rulesAt) > cacheTTL
	b.mu.RUnlock()
	if stale {
		b.refreshRules()
	}
}

// refreshEndpoints reloads the full service_endpoints hash from Redis.
func (b *backend) refreshEndpoints() {
	ctx := context.Background()
	raw, err := b.client.HGetAll(ctx, b.keys.serviceEndpoints()).Result()
	if err != nil {
		logging.Warn().Err(err).Msg("redis router: refresh endpoints failed, serving stale cache")
		return
	}

	b.callbackMu.RLock()
	fresh := make(map[string]*domain.ServiceEndpoint, len(raw))
	for id, blob := range raw {
		var rec endpointRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			logging.Warn().Str("endpoint", id).Err(err).Msg("redis router: corrupt endpoint record skipped")
			continue
		}
		fresh[id] = rec.endpoint(b.callbacks[id])
	}
	b.callbackMu.RUnlock()

	b.mu.Lock()
	b.endpoints = fresh
	b.endpointsAt = time.Now()
	b.mu.Unlock()
}

// refreshRules reloads the full routing_rules hash from Redis.
func (b *backend) refreshRules() {
	ctx := context.Background()
	raw, err := b.client.HGetAll(ctx, b.keys.routingRules()).Result()
	if err != nil {
		logging.Warn().Err(err).Msg("redis router: refresh rules failed, serving stale cache")
		return
	}

	fresh := make(map[string]*domain.RoutingRule, len(raw))
	for id, blob := range raw {
		var r domain.RoutingRule
		if err := json.Unmarshal([]byte(blob), &r); err != nil {
			logging.Warn().Str("rule", id).Err(err).Msg("redis router: corrupt rule record skipped")
			continue
		}
		fresh[id] = &r
	}

	b.mu.Lock()
	b.rules = fresh
	b.rulesAt = time.Now()
	b.mu.Unlock()
}

// loadAll performs the startup full-state load described in spec: every
// table is read once before the replica begins serving traffic.
func (b *backend) loadAll() {
	b.refreshEndpoints()
	b.refreshRules()
}
