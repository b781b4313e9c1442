// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package breaker

import (
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
)

// Registry owns one Breaker per protected target (a downstream service
// name, an endpoint id, whatever the caller chooses as a key), per the
// spec's "per-target" framing for the circuit breaker.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults config.CircuitBreakerConfig
	overrides map[string]config.CircuitBreakerConfig
	store    *sharedStore
}

// NewRegistry builds a Registry. client may be nil to skip shared-store
// persistence entirely (useful for tests that only exercise in-process
// trip/reset behavior).
func NewRegistry(defaults config.CircuitBreakerConfig, client *redis.Client, prefix string) *Registry {
	var store *sharedStore
	if client != nil {
		store = newSharedStore(client, prefix)
	}
	return &Registry{
		breakers:  make(map[string]*Breaker),
		defaults:  defaults,
		overrides: make(map[string]config.CircuitBreakerConfig),
		store:     store,
	}
}

// Configure sets a per-name override, applied the next time that name's
// Breaker is created. Overriding a name with an already-created Breaker
// has no effect on the live instance; callers wanting a change applied
// must Remove the name first.
func (r *Registry) Configure(name string, cfg config.CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[name] = cfg
}

// Get returns the named Breaker, creating it with its configured (or
// default) settings on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg, ok := r.overrides[name]
	if !ok {
		cfg = r.defaults
	}
	b = New(name, cfg, r.store)
	r.breakers[name] = b
	return b
}

// Remove discards a breaker's in-process state so the next Get rebuilds
// it from its configured settings.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, name)
}

// Names returns every breaker currently tracked.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	return names
}

// States returns a name->state snapshot across every tracked breaker.
func (r *Registry) States() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

// Reset calls Breaker.Reset on the named breaker: its rolling failure
// window and timeout counter are cleared and CLOSED is recorded in the
// state metric and shared store. The underlying gobreaker state is not
// changed, so an OPEN breaker stays OPEN until its recovery timeout
// elapses and a half-open probe succeeds.
func (r *Registry) Reset(name string) {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		b.Reset()
	}
}
