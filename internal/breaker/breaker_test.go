// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
)

func testConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		FailureThreshold:      3,
		RecoveryTimeout:       50 * time.Millisecond,
		SuccessThreshold:      2,
		Timeout:               100 * time.Millisecond,
		RollingWindow:         time.Minute,
		MaxConcurrentHalfOpen: 1,
		StateTTL:              time.Hour,
	}
}

var errBoom = errors.New("boom")

func ok(ctx context.Context) (any, error)   { return "ok", nil }
func fail(ctx context.Context) (any, error) { return nil, errBoom }

func TestClosedToOpenOnRollingFailureThreshold(t *testing.T) {
	b := New("svc-a", testConfig(), nil)
	for i := 0; i < 3; i++ {
		if _, err := b.Call(context.Background(), fail); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}
	if got := b.State(); got != "OPEN" {
		t.Fatalf("expected OPEN after %d failures, got %s", 3, got)
	}

	// Further calls should be rejected outright without invoking fn.
	_, err := b.Call(context.Background(), ok)
	var cbErr *CircuitBreakerError
	if !errors.As(err, &cbErr) {
		t.Fatalf("expected CircuitBreakerError while OPEN, got %v", err)
	}
}

func TestOpenTransitionsToHalfOpenAfterRecoveryTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.RecoveryTimeout = 30 * time.Millisecond
	b := New("svc-b", cfg, nil)

	if _, err := b.Call(context.Background(), fail); err == nil {
		t.Fatal("expected failure to trip the breaker")
	}
	if got := b.State(); got != "OPEN" {
		t.Fatalf("expected OPEN, got %s", got)
	}

	time.Sleep(cfg.RecoveryTimeout + 20*time.Millisecond)

	if _, err := b.Call(context.Background(), ok); err != nil {
		t.Fatalf("expected half-open probe to succeed: %v", err)
	}
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.RecoveryTimeout = 20 * time.Millisecond
	cfg.SuccessThreshold = 2
	cfg.MaxConcurrentHalfOpen = 2
	b := New("svc-c", cfg, nil)

	if _, err := b.Call(context.Background(), fail); err == nil {
		t.Fatal("expected initial failure to trip breaker")
	}
	time.Sleep(cfg.RecoveryTimeout + 10*time.Millisecond)

	for i := 0; i < 2; i++ {
		if _, err := b.Call(context.Background(), ok); err != nil {
			t.Fatalf("half-open success %d: %v", i, err)
		}
	}
	if got := b.State(); got != "CLOSED" {
		t.Fatalf("expected CLOSED after success_threshold successes, got %s", got)
	}
}

func TestTimeoutCountsAsFailureAndIncrementsTimeoutCounter(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	cfg.Timeout = 10 * time.Millisecond
	b := New("svc-d", cfg, nil)

	slow := func(ctx context.Context) (any, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if _, err := b.Call(context.Background(), slow); err == nil {
		t.Fatal("expected a timeout error")
	}
	if got := b.TimeoutCount(); got != 1 {
		t.Errorf("expected timeout counter=1, got %d", got)
	}
	if got := b.State(); got != "OPEN" {
		t.Errorf("expected timeout to count as a failure and trip the breaker, got %s", got)
	}
}

func TestManualResetClearsFailureWindow(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	b := New("svc-e", cfg, nil)

	if _, err := b.Call(context.Background(), fail); err == nil {
		t.Fatal("expected failure to trip breaker")
	}
	if got := b.failureWindow.Count(); got == 0 {
		t.Fatal("expected rolling failure window to be non-zero before reset")
	}
	b.Reset()
	if got := b.failureWindow.Count(); got != 0 {
		t.Errorf("expected rolling failure window to be cleared after reset, got %d", got)
	}
	if got := b.TimeoutCount(); got != 0 {
		t.Errorf("expected timeout counter cleared after reset, got %d", got)
	}
}

func TestStatePersistsToSharedStore(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer srv.Close()
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()
	store := newSharedStore(client, "test:message_router")

	cfg := testConfig()
	cfg.FailureThreshold = 1
	b := New("svc-f", cfg, store)

	if _, err := b.Call(context.Background(), fail); err == nil {
		t.Fatal("expected failure to trip breaker")
	}

	got, ok := store.load(context.Background(), "svc-f")
	if !ok {
		t.Fatal("expected a persisted state record after tripping")
	}
	if got != "OPEN" {
		t.Errorf("expected persisted state OPEN, got %s", got)
	}

	ttl := srv.TTL(store.stateKey("svc-f"))
	if ttl <= 0 {
		t.Error("expected state key to carry a TTL")
	}
}

func TestRegistryReusesBreakerPerName(t *testing.T) {
	reg := NewRegistry(testConfig(), nil, "")
	a1 := reg.Get("svc-a")
	a2 := reg.Get("svc-a")
	if a1 != a2 {
		t.Error("expected Get to return the same *Breaker instance for repeated calls with the same name")
	}
	b := reg.Get("svc-b")
	if a1 == b {
		t.Error("expected distinct breakers for distinct names")
	}
	names := reg.Names()
	if len(names) != 2 {
		t.Errorf("expected 2 tracked breaker names, got %d", len(names))
	}
}

func TestRegistryResetDelegatesToBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 1
	reg := NewRegistry(cfg, nil, "")
	b := reg.Get("svc-a")
	if _, err := b.Call(context.Background(), fail); err == nil {
		t.Fatal("expected failure to trip breaker")
	}
	if got := b.State(); got != "OPEN" {
		t.Fatalf("expected OPEN, got %s", got)
	}
	reg.Reset("svc-a")
	if got := b.failureWindow.Count(); got != 0 {
		t.Errorf("expected reset to clear the breaker's failure window, got %d", got)
	}
}
