// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/cache"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// CircuitBreakerError is raised by Call when the breaker rejects a call
// outright because it is OPEN, or the half-open concurrency cap is full.
type CircuitBreakerError struct {
	Name  string
	State string
	Cause error
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s: %v", e.Name, e.State, e.Cause)
}

func (e *CircuitBreakerError) Unwrap() error { return e.Cause }

// Breaker is a single named circuit breaker. failures and timeouts are
// both tracked over a rolling window (cache.SlidingWindowCounter) rather
// than gobreaker's own closed-state Counts, since the spec ties tripping
// to a literal rolling-window count rather than a since-last-clear total.
type Breaker struct {
	name string
	cfg  config.CircuitBreakerConfig

	cb *gobreaker.CircuitBreaker[any]

	failureWindow *cache.SlidingWindowCounter
	timeoutCount  atomic.Int64

	store *sharedStore
}

// New constructs a Breaker named name. store may be nil, in which case
// state persistence is skipped (useful for tests and for breakers that
// don't need a fresh-replica reload story).
func New(name string, cfg config.CircuitBreakerConfig, store *sharedStore) *Breaker {
	b := &Breaker{
		name:          name,
		cfg:           cfg,
		failureWindow: cache.NewSlidingWindowCounter(rollingWindow(cfg), 10),
		store:         store,
	}

	halfOpenCap := cfg.MaxConcurrentHalfOpen
	if halfOpenCap <= 0 {
		halfOpenCap = 1
	}
	// gobreaker ties the half-open concurrency cap and the
	// consecutive-successes-needed-to-close threshold to one field
	// (MaxRequests). We take the larger of the two configured values so
	// closing never happens with fewer successes than SuccessThreshold
	// demands, at the cost of allowing up to that many concurrent
	// half-open probes when SuccessThreshold > MaxConcurrentHalfOpen.
	maxRequests := halfOpenCap
	if cfg.SuccessThreshold > maxRequests {
		maxRequests = cfg.SuccessThreshold
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(maxRequests),
		Interval:    0, // closed-state Counts never auto-clears; we trip via failureWindow instead
		Timeout:     recoveryTimeout(cfg),
		ReadyToTrip: func(gobreaker.Counts) bool {
			threshold := cfg.FailureThreshold
			if threshold <= 0 {
				threshold = 5
			}
			return b.failureWindow.Count() >= int64(threshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			state := stateName(to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.CircuitStateValue(state))
			b.persist(state)
		},
	}
	b.cb = gobreaker.NewCircuitBreaker[any](settings)
	return b
}

func rollingWindow(cfg config.CircuitBreakerConfig) time.Duration {
	if cfg.RollingWindow > 0 {
		return cfg.RollingWindow
	}
	return time.Minute
}

func recoveryTimeout(cfg config.CircuitBreakerConfig) time.Duration {
	if cfg.RecoveryTimeout > 0 {
		return cfg.RecoveryTimeout
	}
	return 30 * time.Second
}

func callTimeout(cfg config.CircuitBreakerConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}
	return 10 * time.Second
}

// Call runs fn under the breaker: rejected immediately if OPEN or the
// half-open slot is full, bounded by the configured call timeout, with
// timeouts counted both as failures and on a distinct timeouts counter.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout(b.cfg))
		defer cancel()

		resultCh := make(chan any, 1)
		errCh := make(chan error, 1)
		go func() {
			r, callErr := fn(callCtx)
			if callErr != nil {
				errCh <- callErr
				return
			}
			resultCh <- r
		}()

		select {
		case <-callCtx.Done():
			b.timeoutCount.Add(1)
			b.recordFailure()
			metrics.CircuitBreakerTimeouts.WithLabelValues(b.name).Inc()
			metrics.CircuitBreakerFailures.WithLabelValues(b.name).Inc()
			return nil, callCtx.Err()
		case callErr := <-errCh:
			b.recordFailure()
			metrics.CircuitBreakerFailures.WithLabelValues(b.name).Inc()
			return nil, callErr
		case r := <-resultCh:
			return r, nil
		}
	})

	if err != nil {
		if isGobreakerRejection(err) {
			return nil, &CircuitBreakerError{Name: b.name, State: stateName(b.cb.State()), Cause: err}
		}
		return nil, err
	}
	return result, nil
}

func isGobreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// State returns the breaker's current state name (CLOSED, OPEN, HALF_OPEN).
func (b *Breaker) State() string {
	return stateName(b.cb.State())
}

// stateName converts gobreaker's lowercase-hyphenated state names
// ("closed", "open", "half-open") to the spec's uppercase-underscore
// convention (CLOSED, OPEN, HALF_OPEN).
func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return "OPEN"
	case gobreaker.StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// TimeoutCount returns the number of calls that have timed out.
func (b *Breaker) TimeoutCount() int64 {
	return b.timeoutCount.Load()
}

// Reset clears the rolling failure window and timeout counter, per the
// manual reset() operation in the spec. If gobreaker currently holds the
// circuit OPEN, the breaker still waits out the recovery timeout before
// its next half-open probe; clearing failureWindow here means that once
// a successful probe has closed it, the failures from before the reset
// no longer count toward the next trip.
func (b *Breaker) Reset() {
	b.failureWindow.Reset()
	b.timeoutCount.Store(0)
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(metrics.CircuitStateValue("CLOSED"))
	b.persist("CLOSED")
}

func (b *Breaker) persist(state string) {
	if b.store == nil {
		return
	}
	b.store.save(b.name, state, b.cfg.StateTTL)
}

// recordFailure increments the local rolling window that drives
// ReadyToTrip and mirrors the failure timestamp into the shared store for
// cross-replica observability.
func (b *Breaker) recordFailure() {
	b.failureWindow.IncrementOne()
	if b.store != nil {
		b.store.recordFailure(b.name, time.Now(), rollingWindow(b.cfg))
	}
}
