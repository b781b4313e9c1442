// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package health

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/supervisor"
)

func testHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		CheckInterval:      20 * time.Millisecond,
		Timeout:            50 * time.Millisecond,
		Retries:            1,
		RetryDelay:         5 * time.Millisecond,
		DegradedThreshold:  10 * time.Millisecond,
		UnhealthyThreshold: 2,
		AggregatorTick:     20 * time.Millisecond,
		SnapshotTTL:        time.Minute,
	}
}

func TestCheckerRecordsSuccessAsHealthy(t *testing.T) {
	c := NewChecker("svc-a", func(ctx context.Context) error { return nil }, testHealthConfig())
	c.runOnce(context.Background())

	snap := c.Snapshot()
	if snap.Status != domain.ServiceHealthy {
		t.Fatalf("expected HEALTHY, got %s", snap.Status)
	}
	if snap.SuccessCount != 1 {
		t.Errorf("expected success_count=1, got %d", snap.SuccessCount)
	}
}

func TestCheckerMarksUnhealthyAfterConsecutiveFailureThreshold(t *testing.T) {
	cfg := testHealthConfig()
	cfg.UnhealthyThreshold = 2
	cfg.Retries = 0
	c := NewChecker("svc-b", func(ctx context.Context) error { return errors.New("down") }, cfg)

	c.runOnce(context.Background())
	if got := c.Snapshot().Status; got != domain.ServiceDegraded {
		t.Fatalf("expected DEGRADED after 1 failure, got %s", got)
	}
	c.runOnce(context.Background())
	if got := c.Snapshot().Status; got != domain.ServiceUnhealthy {
		t.Fatalf("expected UNHEALTHY after consecutive failures reach threshold, got %s", got)
	}
}

func TestCheckerMarksDegradedOnSlowResponse(t *testing.T) {
	cfg := testHealthConfig()
	cfg.DegradedThreshold = 5 * time.Millisecond
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retries = 0
	slow := func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		return nil
	}
	c := NewChecker("svc-c", slow, cfg)
	c.runOnce(context.Background())

	if got := c.Snapshot().Status; got != domain.ServiceDegraded {
		t.Fatalf("expected DEGRADED on slow-but-successful check, got %s", got)
	}
}

func TestCheckerRetriesBeforeRecordingFailure(t *testing.T) {
	cfg := testHealthConfig()
	cfg.Retries = 2
	cfg.RetryDelay = 1 * time.Millisecond
	attempts := 0
	flaky := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	}
	c := NewChecker("svc-d", flaky, cfg)
	c.runOnce(context.Background())

	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 + 2 retries), got %d", attempts)
	}
	if got := c.Snapshot().Status; got != domain.ServiceHealthy {
		t.Fatalf("expected eventual success to record HEALTHY, got %s", got)
	}
}

func TestRegistryAggregatesOverallStatus(t *testing.T) {
	reg := NewRegistry(nil, nil, "", testHealthConfig())
	healthyChecker := reg.Register("healthy-svc", func(ctx context.Context) error { return nil })
	unhealthyCfg := testHealthConfig()
	unhealthyCfg.UnhealthyThreshold = 1
	failing := NewChecker("failing-svc", func(ctx context.Context) error { return errors.New("down") }, unhealthyCfg)

	reg.mu.Lock()
	reg.checkers["failing-svc"] = failing
	reg.mu.Unlock()

	healthyChecker.runOnce(context.Background())
	failing.runOnce(context.Background())

	snap := reg.GetHealthStatus()
	if snap.Overall != domain.ServiceUnhealthy {
		t.Fatalf("expected overall UNHEALTHY when any service is unhealthy, got %s", snap.Overall)
	}
	if len(snap.Services) != 2 {
		t.Errorf("expected 2 services in snapshot, got %d", len(snap.Services))
	}
}

func TestRegistryPublishesSnapshotToSharedStore(t *testing.T) {
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer srv.Close()
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	tree, err := supervisor.NewSupervisorTree(slog.Default(), supervisor.DefaultTreeConfig())
	if err != nil {
		t.Fatalf("supervisor tree: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	reg := NewRegistry(tree, client, "test:message_router", testHealthConfig())
	reg.Register("svc-a", func(ctx context.Context) error { return nil })
	reg.Start(ctx)

	time.Sleep(60 * time.Millisecond)

	snap, ok := reg.LoadSnapshot(context.Background(), client, "test:message_router")
	if !ok {
		t.Fatal("expected a published snapshot in the shared store")
	}
	if snap.Overall == "" {
		t.Error("expected a non-empty overall status in the published snapshot")
	}
}
