// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(srv.Close)

	return &config.Config{
		Server: config.ServerConfig{Environment: "development"},
		Redis:  config.RedisConfig{URL: "redis://" + srv.Addr(), Prefix: "test:message_router"},
		EventBus: config.EventBusConfig{
			WorkerPoolSize:  2,
			MaxRetries:      3,
			MaintenanceTick: 50 * time.Millisecond,
			RetentionWindow: time.Minute,
		},
		Queue: config.QueueConfig{
			MaxWorkersPerQueue: 2,
			RetryDelays:        []float64{1, 5, 15, 60},
			BatchSize:          10,
			BatchTimeout:       time.Second,
			MaintenanceTick:    50 * time.Millisecond,
		},
		PubSub: config.PubSubConfig{HistorySize: 100, AckTimeout: time.Second, BackoffFactor: 2, MaxRetries: 3},
		Router: config.RouterConfig{
			StaleAfter: 5 * time.Minute, UnhealthyAfter: 5 * time.Minute, LoadResetTick: time.Minute,
			CacheTTL: time.Minute, HeartbeatTTL: 5 * time.Minute, HeartbeatPeriod: time.Minute,
		},
		Scaling: config.ScalingConfig{
			MinInstances: 1, MaxInstances: 3, Policy: "MANUAL",
			StatsCollectionTick: 50 * time.Millisecond, HealthEvalTick: 50 * time.Millisecond, ScalingDecisionTick: 50 * time.Millisecond,
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			FailureThreshold: 3, RecoveryTimeout: time.Second, SuccessThreshold: 1,
			Timeout: time.Second, RollingWindow: time.Minute, MaxConcurrentHalfOpen: 1, StateTTL: time.Hour,
		},
		Health: config.HealthConfig{
			CheckInterval: 20 * time.Millisecond, Timeout: 50 * time.Millisecond, Retries: 1, RetryDelay: 5 * time.Millisecond,
			DegradedThreshold: 10 * time.Millisecond, UnhealthyThreshold: 2, AggregatorTick: 20 * time.Millisecond, SnapshotTTL: time.Minute,
		},
		DeadLetter: config.DeadLetterConfig{
			PoisonThreshold: 5, RecurrenceThreshold: 3, OversizedBytes: 1 << 20, MaxNestingDepth: 20,
			MaxRecoveryAttempts: 3, AutoRecoveryMinConfidence: 0.8, RetentionDays: 30, CleanupTick: time.Hour,
		},
		ErrorCoord: config.ErrorCoordConfig{
			PatternDetectionWindow: time.Hour, MaxRetryAttempts: 3, CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout: 5 * time.Minute, RetentionDays: 30, PatternDetectorTick: time.Hour, CleanupTick: 24 * time.Hour,
		},
		Version: config.VersionConfig{LatestStable: "v1", Brand: "taxpoynt"},
	}
}

func TestBuildConstructsEveryComponent(t *testing.T) {
	p, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Bus == nil || p.Queues == nil || p.PubSub == nil || p.Scaling == nil ||
		p.Breakers == nil || p.Health == nil || p.DeadLetter == nil || p.ErrorCoord == nil || p.Versions == nil {
		t.Fatal("Build left a component nil")
	}
}

func TestStartSpawnsMinRouterInstancesAndServesHTTP(t *testing.T) {
	p, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := p.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for p.Scaling.InstanceCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := p.Scaling.InstanceCount(); got != 1 {
		t.Fatalf("expected 1 router instance after start, got %d", got)
	}

	handler := p.HTTPHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/versions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/versions status = %d, body=%s", rec.Code, rec.Body.String())
	}

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	if out["latest_stable"] != "v1" {
		t.Errorf("latest_stable = %v, want v1", out["latest_stable"])
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor tree did not stop after cancel")
	}
	p.Shutdown()
}
