// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package health

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// Snapshot is the aggregated view returned by getHealthStatus(): overall
// cluster status plus every monitored service's current HealthMetrics.
type Snapshot struct {
	Overall   domain.ServiceHealthStatus      `json:"overall"`
	Services  map[string]domain.HealthMetrics `json:"services"`
	Timestamp time.Time                       `json:"timestamp"`
}

// aggregate derives the overall status from a set of per-service
// snapshots: HEALTHY if all are healthy, DEGRADED if any is degraded,
// UNHEALTHY if any is unhealthy.
func aggregate(services map[string]domain.HealthMetrics) domain.ServiceHealthStatus {
	overall := domain.ServiceHealthy
	for _, m := range services {
		switch m.Status {
		case domain.ServiceUnhealthy:
			return domain.ServiceUnhealthy
		case domain.ServiceDegraded:
			overall = domain.ServiceDegraded
		}
	}
	return overall
}

func (r *Registry) snapshotKey() string {
	return r.prefix + ":health:snapshot"
}

// runAggregator writes an overall-status snapshot to the shared store
// every tick, per spec.md §4.8's 10-second aggregator loop.
func (r *Registry) runAggregator(ctx context.Context, tick time.Duration, ttl time.Duration) {
	if tick <= 0 {
		tick = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.publishSnapshot(ctx, ttl)
		}
	}
}

func (r *Registry) publishSnapshot(ctx context.Context, ttl time.Duration) {
	snap := r.GetHealthStatus()
	if r.store == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	r.store.Set(ctx, r.snapshotKey(), payload, ttl)
}

// LoadSnapshot reads the last-published snapshot from the shared store,
// for consumers (e.g. a fresh replica, or the HTTP boundary) that want
// the aggregate without running checkers themselves.
func (r *Registry) LoadSnapshot(ctx context.Context, store *redis.Client, prefix string) (Snapshot, bool) {
	val, err := store.Get(ctx, prefix+":health:snapshot").Result()
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}
