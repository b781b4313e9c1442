// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package errorcoord

import (
	"errors"
	"testing"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

func testConfig() config.ErrorCoordConfig {
	return config.ErrorCoordConfig{
		PatternDetectionWindow: time.Hour,
		MaxRetryAttempts:       3,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:  5 * time.Minute,
		RetentionDays:          30,
		PatternDetectorTick:    5 * time.Minute,
		CleanupTick:            24 * time.Hour,
	}
}

func testContext(service, operation string) domain.ErrorContext {
	return domain.ErrorContext{
		ServiceName:   service,
		OperationName: operation,
		UserID:        "user-1",
		SessionID:     "session-1",
	}
}

func TestExtractMessageTemplateReplacesDynamicContent(t *testing.T) {
	msg := "failed for order 12345 user bob@example.com at https://api.example.com/v1/orders/abc id 550e8400-e29b-41d4-a716-446655440000"
	template := extractMessageTemplate(msg)

	for _, want := range []string{"{number}", "{email}", "{url}", "{uuid}"} {
		if !contains(template, want) {
			t.Errorf("template %q missing placeholder %q", template, want)
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (substr == "" || indexOf(s, substr) >= 0)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestFingerprintStableAcrossDynamicContent(t *testing.T) {
	a := fingerprint(domain.ErrorNetwork, "error", "svc", "op", "timeout calling order 123")
	b := fingerprint(domain.ErrorNetwork, "error", "svc", "op", "timeout calling order 456")
	if a != b {
		t.Fatalf("expected matching fingerprints for messages differing only by number, got %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16-char fingerprint, got %d chars", len(a))
	}
}

func TestFingerprintDiffersAcrossErrorType(t *testing.T) {
	a := fingerprint(domain.ErrorNetwork, "error", "svc", "op", "boom")
	b := fingerprint(domain.ErrorDatabase, "error", "svc", "op", "boom")
	if a == b {
		t.Fatal("expected different fingerprints for different error types")
	}
}

func TestDetermineErrorSourceByRole(t *testing.T) {
	cases := []struct {
		ctx  domain.ErrorContext
		want domain.ErrorSource
	}{
		{domain.ErrorContext{Role: "SI"}, domain.SourceSIService},
		{domain.ErrorContext{Role: "APP"}, domain.SourceAPPService},
		{domain.ErrorContext{Role: "HYBRID"}, domain.SourceHybridService},
		{domain.ErrorContext{ServiceName: "core_billing"}, domain.SourceCorePlatform},
		{domain.ErrorContext{ServiceName: "external_tax_api"}, domain.SourceExternalSystem},
		{domain.ErrorContext{ServiceName: "unknown-thing"}, domain.SourceCorePlatform},
	}
	for _, c := range cases {
		if got := determineErrorSource(c.ctx); got != c.want {
			t.Errorf("determineErrorSource(%+v) = %q, want %q", c.ctx, got, c.want)
		}
	}
}

func TestPatternStoreRecordCreatesThenAggregates(t *testing.T) {
	store := newPatternStore()
	rec := &domain.ErrorRecord{
		ErrorID:     "e1",
		Fingerprint: "fp1",
		ErrorType:   domain.ErrorNetwork,
		Severity:    domain.SeverityMedium,
		OccurredAt:  time.Now().UTC(),
		Context:     testContext("svc", "op-a"),
	}
	pattern := store.record(rec)
	if pattern.Frequency != 1 {
		t.Fatalf("expected frequency 1 on first record, got %d", pattern.Frequency)
	}

	rec2 := &domain.ErrorRecord{
		ErrorID:     "e2",
		Fingerprint: "fp1",
		ErrorType:   domain.ErrorNetwork,
		Severity:    domain.SeverityMedium,
		OccurredAt:  time.Now().UTC(),
		Context:     testContext("svc", "op-b"),
	}
	pattern2 := store.record(rec2)
	if pattern2.Frequency != 2 {
		t.Fatalf("expected frequency 2 after second record, got %d", pattern2.Frequency)
	}
	if len(pattern2.AffectedOperations) != 2 {
		t.Fatalf("expected 2 affected operations, got %v", pattern2.AffectedOperations)
	}
}

func TestEscalationThresholdScalesBySeverity(t *testing.T) {
	if got := escalationThreshold(domain.SeverityCritical); got != 1 {
		t.Errorf("critical threshold = %d, want 1", got)
	}
	if got := escalationThreshold(domain.SeverityLow); got != 10 {
		t.Errorf("low threshold = %d, want 10", got)
	}
}

func TestIsAutoRecoverable(t *testing.T) {
	if !isAutoRecoverable(domain.ErrorNetwork, domain.SeverityMedium) {
		t.Error("network errors should be auto-recoverable at medium severity")
	}
	if isAutoRecoverable(domain.ErrorNetwork, domain.SeverityCritical) {
		t.Error("critical severity should never be auto-recoverable regardless of type")
	}
	if isAutoRecoverable(domain.ErrorValidation, domain.SeverityLow) {
		t.Error("validation errors should never be auto-recoverable")
	}
}

func TestHandleErrorValidationRecordsError(t *testing.T) {
	h := New(testConfig(), nil)
	id := h.HandleError(errors.New("missing field x"), testContext("svc", "validate"), domain.ErrorValidation, domain.SeverityLow, 0)

	rec, _, _, found := h.GetErrorStatus(id)
	if !found {
		t.Fatal("expected record to be found")
	}
	if rec.ErrorType != domain.ErrorValidation {
		t.Errorf("ErrorType = %q, want validation", rec.ErrorType)
	}
}

func TestHandleErrorIntegrationOpensBreakerAtThreshold(t *testing.T) {
	h := New(testConfig(), nil)
	ctx := testContext("payments-api", "charge")

	for i := 0; i < 2; i++ {
		h.HandleError(errors.New("upstream 500"), ctx, domain.ErrorIntegration, domain.SeverityMedium, 0)
	}
	h.mu.RLock()
	breaker := h.breakers["payments-api"]
	h.mu.RUnlock()
	if breaker == nil || breaker.state == "open" {
		t.Fatal("breaker should not be open before reaching threshold")
	}

	h.HandleError(errors.New("upstream 500"), ctx, domain.ErrorIntegration, domain.SeverityMedium, 0)
	h.mu.RLock()
	breaker = h.breakers["payments-api"]
	h.mu.RUnlock()
	if breaker == nil || breaker.state != "open" {
		t.Fatal("breaker should open once failure count reaches circuit_breaker_threshold")
	}
}

func TestHandleErrorNetworkCreatesRecoveryPlanWithBackoff(t *testing.T) {
	h := New(testConfig(), nil)
	h.HandleError(errors.New("dial tcp: i/o timeout"), testContext("svc", "call"), domain.ErrorNetwork, domain.SeverityMedium, 1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.plans) != 1 {
		t.Fatalf("expected one recovery plan, got %d", len(h.plans))
	}
	for _, plan := range h.plans {
		delay, ok := plan.Metadata["retry_delay_seconds"].(int)
		if !ok || delay != 60 {
			t.Errorf("expected retry_delay_seconds=60 for retryCount=1, got %v", plan.Metadata["retry_delay_seconds"])
		}
	}
}

func TestHandleErrorNetworkStopsAfterMaxRetryAttempts(t *testing.T) {
	h := New(testConfig(), nil)
	h.HandleError(errors.New("timeout"), testContext("svc", "call"), domain.ErrorNetwork, domain.SeverityMedium, 5)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.plans) != 0 {
		t.Fatalf("expected no recovery plan once retry count exceeds max_retry_attempts, got %d", len(h.plans))
	}
}

func TestHandleErrorDatabaseConstraintVsTimeout(t *testing.T) {
	h := New(testConfig(), nil)
	h.HandleError(errors.New("unique constraint violation on invoices"), testContext("svc", "insert"), domain.ErrorDatabase, domain.SeverityMedium, 0)
	h.HandleError(errors.New("query timeout after 30s"), testContext("svc", "select"), domain.ErrorDatabase, domain.SeverityMedium, 0)

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.plans) != 1 {
		t.Fatalf("expected exactly one recovery plan (from the timeout, not the constraint violation), got %d", len(h.plans))
	}
	for _, plan := range h.plans {
		if optimize, _ := plan.Metadata["optimize_query"].(bool); !optimize {
			t.Error("expected optimize_query metadata on the timeout recovery plan")
		}
	}
}

func TestHandleErrorSystemRecordsAllSeverities(t *testing.T) {
	h := New(testConfig(), nil)
	h.HandleError(errors.New("disk full"), testContext("svc", "write"), domain.ErrorSystem, domain.SeverityCritical, 0)
	h.HandleError(errors.New("minor glitch"), testContext("svc", "write"), domain.ErrorSystem, domain.SeverityLow, 0)
	// No bus wired; this test only confirms HandleError does not panic across
	// severities and records both errors regardless of escalation outcome.
	summary := h.GetErrorSummary(time.Hour)
	if summary.TotalErrors != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", summary.TotalErrors)
	}
}

func TestGetErrorPatternsFiltersAndSorts(t *testing.T) {
	h := New(testConfig(), nil)
	ctx := testContext("svc", "op")
	for i := 0; i < 3; i++ {
		h.HandleError(errors.New("network blip"), ctx, domain.ErrorNetwork, domain.SeverityMedium, 0)
	}
	h.HandleError(errors.New("bad input"), ctx, domain.ErrorValidation, domain.SeverityLow, 0)

	patterns := h.GetErrorPatterns(domain.ErrorNetwork, "", 0)
	if len(patterns) != 1 {
		t.Fatalf("expected 1 network pattern, got %d", len(patterns))
	}
	if patterns[0].Frequency != 3 {
		t.Errorf("expected frequency 3, got %d", patterns[0].Frequency)
	}

	all := h.GetErrorPatterns("", "", 0)
	if len(all) != 2 {
		t.Fatalf("expected 2 distinct patterns total, got %d", len(all))
	}
	if all[0].Frequency < all[1].Frequency {
		t.Error("expected patterns sorted by frequency descending")
	}
}

func TestResolveErrorMarksResolvedAndAffectsSummary(t *testing.T) {
	h := New(testConfig(), nil)
	id := h.HandleError(errors.New("boom"), testContext("svc", "op"), domain.ErrorSystem, domain.SeverityLow, 0)

	if ok := h.ResolveError("missing-id", "n/a", "alice"); ok {
		t.Fatal("expected ResolveError to fail for unknown id")
	}
	if ok := h.ResolveError(id, "fixed by restart", "alice"); !ok {
		t.Fatal("expected ResolveError to succeed for known id")
	}

	summary := h.GetErrorSummary(time.Hour)
	if summary.ResolutionRate != 100 {
		t.Errorf("expected resolution rate 100%%, got %.1f", summary.ResolutionRate)
	}
}

func TestRegisterHandlerRunsAlongsideBuiltin(t *testing.T) {
	h := New(testConfig(), nil)
	called := false
	h.RegisterHandler(domain.ErrorValidation, func(rec *domain.ErrorRecord) {
		called = true
	})

	h.HandleError(errors.New("bad field"), testContext("svc", "op"), domain.ErrorValidation, domain.SeverityLow, 0)
	if !called {
		t.Error("expected custom registered handler to run")
	}
}

func TestRunEscalationCheckPatternReachesThreshold(t *testing.T) {
	h := New(testConfig(), nil)
	ctx := testContext("svc", "op")
	// Critical severity escalates after a single occurrence.
	h.HandleError(errors.New("meltdown"), ctx, domain.ErrorSystem, domain.SeverityCritical, 0)

	h.runEscalationCheck()

	patterns := h.GetErrorPatterns(domain.ErrorSystem, "", 0)
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].Frequency < patterns[0].EscalationThreshold {
		t.Error("expected pattern frequency to have reached its escalation threshold")
	}
}

func TestRunCleanupRemovesOnlyStaleResolvedRecords(t *testing.T) {
	cfg := testConfig()
	cfg.RetentionDays = 1
	h := New(cfg, nil)

	id := h.HandleError(errors.New("boom"), testContext("svc", "op"), domain.ErrorSystem, domain.SeverityLow, 0)
	h.ResolveError(id, "fixed", "alice")

	h.mu.Lock()
	rec := h.records[id]
	stale := rec.ResolvedAt.AddDate(0, 0, -2)
	rec.ResolvedAt = &stale
	h.mu.Unlock()

	h.runCleanup()

	h.mu.RLock()
	_, stillPresent := h.records[id]
	h.mu.RUnlock()
	if stillPresent {
		t.Error("expected stale resolved record to be removed by cleanup")
	}
}
