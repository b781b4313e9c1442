// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package health

import (
	"context"
	"sync"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// CheckFunc is a user-supplied probe, expected to be idempotent. A
// non-nil error or a context deadline both count as a failed check.
type CheckFunc func(ctx context.Context) error

// Checker runs a single named service's check loop and keeps its rolling
// HealthMetrics. It implements suture.Service (Serve(ctx) error) so it
// can be supervised alongside the rest of the routing fabric's background
// tasks.
type Checker struct {
	name  string
	check CheckFunc
	cfg   config.HealthConfig

	mu      sync.RWMutex
	metrics domain.HealthMetrics
}

// NewChecker builds a Checker for name using fn as the probe.
func NewChecker(name string, fn CheckFunc, cfg config.HealthConfig) *Checker {
	return &Checker{
		name:  name,
		check: fn,
		cfg:   cfg,
		metrics: domain.HealthMetrics{
			ServiceName: name,
			Status:      domain.ServiceUnknown,
		},
	}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckInterval > 0 {
		return c.cfg.CheckInterval
	}
	return 30 * time.Second
}

func (c *Checker) timeout() time.Duration {
	if c.cfg.Timeout > 0 {
		return c.cfg.Timeout
	}
	return 5 * time.Second
}

func (c *Checker) retries() int {
	if c.cfg.Retries > 0 {
		return c.cfg.Retries
	}
	return 0
}

func (c *Checker) retryDelay() time.Duration {
	if c.cfg.RetryDelay > 0 {
		return c.cfg.RetryDelay
	}
	return time.Second
}

func (c *Checker) unhealthyThreshold() int {
	if c.cfg.UnhealthyThreshold > 0 {
		return c.cfg.UnhealthyThreshold
	}
	return 3
}

func (c *Checker) degradedThreshold() time.Duration {
	if c.cfg.DegradedThreshold > 0 {
		return c.cfg.DegradedThreshold
	}
	return 2 * time.Second
}

// Serve runs the check loop until ctx is canceled.
func (c *Checker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()

	c.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

// runOnce performs a single check tick, retrying on failure up to
// c.retries() times with c.retryDelay() between attempts, then records
// the outcome.
func (c *Checker) runOnce(ctx context.Context) {
	var (
		lastErr  error
		duration time.Duration
	)

	attempts := c.retries() + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay()):
			}
		}

		checkCtx, cancel := context.WithTimeout(ctx, c.timeout())
		start := time.Now()
		lastErr = c.check(checkCtx)
		duration = time.Since(start)
		cancel()

		if lastErr == nil {
			break
		}
	}

	c.record(lastErr == nil, duration, lastErr)
}

func (c *Checker) record(ok bool, duration time.Duration, checkErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.metrics.LastCheck = now
	c.metrics.ResponseTimeMs = float64(duration.Milliseconds())
	c.metrics.RecordCheck(ok)

	if ok {
		c.metrics.SuccessCount++
		c.metrics.ConsecutiveFailures = 0
		c.metrics.LastSuccess = now
	} else {
		c.metrics.FailureCount++
		c.metrics.ConsecutiveFailures++
		c.metrics.LastFailure = now
		logging.Warn().Str("service", c.name).Err(checkErr).Msg("health check failed")
	}

	c.metrics.Status = c.deriveStatus(duration)

	metrics.HealthCheckStatus.WithLabelValues(c.name).Set(metrics.ServiceHealthValue(string(c.metrics.Status)))
	metrics.HealthCheckDuration.WithLabelValues(c.name).Observe(duration.Seconds())
}

// deriveStatus applies spec.md §4.8's threshold rules: UNHEALTHY if
// consecutive failures >= unhealthy_threshold; DEGRADED if response time
// exceeds degraded_threshold_s or the most recent check failed; otherwise
// HEALTHY. Must be called with c.mu held.
func (c *Checker) deriveStatus(duration time.Duration) domain.ServiceHealthStatus {
	if c.metrics.ConsecutiveFailures >= c.unhealthyThreshold() {
		return domain.ServiceUnhealthy
	}
	if duration > c.degradedThreshold() || c.metrics.ConsecutiveFailures > 0 {
		return domain.ServiceDegraded
	}
	return domain.ServiceHealthy
}

// Snapshot returns a copy of this checker's current HealthMetrics.
func (c *Checker) Snapshot() domain.HealthMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := c.metrics
	m.History = append([]bool(nil), c.metrics.History...)
	return m
}
