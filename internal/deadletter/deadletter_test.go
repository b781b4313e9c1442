// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

func testConfig() config.DeadLetterConfig {
	return config.DeadLetterConfig{
		PoisonThreshold:           5,
		RecurrenceThreshold:       3,
		OversizedBytes:            1 << 20,
		MaxNestingDepth:           20,
		MaxRecoveryAttempts:       3,
		AutoRecoveryMinConfidence: 0.8,
		RetentionDays:             30,
		CleanupTick:               time.Hour,
	}
}

func testQueuedMessage(id string, reason domain.FailureReason, retryCount int) domain.QueuedMessage {
	return domain.QueuedMessage{
		RoutedMessage: domain.RoutedMessage{
			Event: domain.Event{
				ID:         id,
				Payload:    map[string]any{"foo": "bar"},
				Priority:   domain.PriorityNormal,
				RetryCount: retryCount,
			},
		},
		Status: domain.StatusFailed,
	}
}

func newDeadLetter(id string, reason domain.FailureReason, retryCount int, errMsg string) *domain.DeadLetterMessage {
	return &domain.DeadLetterMessage{
		ID:       id + "-dl",
		Original: testQueuedMessage(id, reason, retryCount),
		Failure: domain.FailureContext{
			FailureID:     id + "-failure",
			Reason:        reason,
			ErrorMessage:  errMsg,
			SourceService: "invoice-service",
			FailedAt:      time.Now(),
			RetryCount:    retryCount,
		},
	}
}

func TestHighRetryCountDetector(t *testing.T) {
	detector := highRetryCountDetector(testConfig())
	dl := newDeadLetter("m1", domain.FailureProcessingError, 5, "boom")
	if !detector(dl, nil) {
		t.Error("expected poison when retry count meets poison_threshold")
	}
	dl2 := newDeadLetter("m2", domain.FailureProcessingError, 1, "boom")
	if detector(dl2, nil) {
		t.Error("expected not-poison when retry count is below poison_threshold")
	}
}

func TestRecurringFailureDetector(t *testing.T) {
	detector := recurringFailureDetector(testConfig())
	dl := newDeadLetter("m1", domain.FailureTimeout, 0, "timeout")
	recent := []*domain.DeadLetterMessage{
		newDeadLetter("m1", domain.FailureTimeout, 0, "timeout"),
		newDeadLetter("m1", domain.FailureTimeout, 0, "timeout"),
		newDeadLetter("m1", domain.FailureTimeout, 0, "timeout"),
	}
	if !detector(dl, recent) {
		t.Error("expected poison when the same message id recurs >= recurrence_threshold times")
	}
	if detector(newDeadLetter("m2", domain.FailureTimeout, 0, "timeout"), recent) {
		t.Error("expected not-poison for an unrelated message id")
	}
}

func TestMalformedPayloadDetector(t *testing.T) {
	detector := malformedPayloadDetector()
	dl := newDeadLetter("m1", domain.FailureInvalidFormat, 0, "")
	if !detector(dl, nil) {
		t.Error("expected poison for INVALID_FORMAT reason")
	}
	dl2 := newDeadLetter("m2", domain.FailureProcessingError, 0, "failed to parse json payload")
	if !detector(dl2, nil) {
		t.Error("expected poison when error message contains a format keyword")
	}
	dl3 := newDeadLetter("m3", domain.FailureProcessingError, 0, "connection refused")
	if detector(dl3, nil) {
		t.Error("expected not-poison for an unrelated error message")
	}
}

func TestOversizedOrDeepPayloadDetector(t *testing.T) {
	cfg := testConfig()
	cfg.OversizedBytes = 10
	cfg.MaxNestingDepth = 2
	detector := oversizedOrDeepPayloadDetector(cfg)

	oversized := newDeadLetter("m1", domain.FailureProcessingError, 0, "")
	oversized.Original.Payload = map[string]any{"field": "this value is far longer than ten bytes"}
	if !detector(oversized, nil) {
		t.Error("expected poison for an oversized payload")
	}

	deep := newDeadLetter("m2", domain.FailureProcessingError, 0, "")
	deep.Original.Payload = map[string]any{
		"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": "x"}}},
	}
	if !detector(deep, nil) {
		t.Error("expected poison for a deeply nested payload")
	}

	shallow := newDeadLetter("m3", domain.FailureProcessingError, 0, "")
	shallow.Original.Payload = map[string]any{"a": "b"}
	if detector(shallow, nil) {
		t.Error("expected not-poison for a small, shallow payload")
	}
}

func TestCalculatePriorityScoreByReason(t *testing.T) {
	dl := newDeadLetter("m1", domain.FailureCircuitBreakerOpen, 0, "")
	if got := calculatePriorityScore(dl); got != 0.9 {
		t.Errorf("expected base score 0.9 for CIRCUIT_BREAKER_OPEN, got %v", got)
	}

	dl2 := newDeadLetter("m2", domain.FailurePoisonMessage, 0, "")
	if got := calculatePriorityScore(dl2); got != 0.0 {
		t.Errorf("expected base score 0.0 for POISON_MESSAGE, got %v", got)
	}
}

func TestCalculatePriorityScorePriorityAndTenantBoosts(t *testing.T) {
	dl := newDeadLetter("m1", domain.FailureProcessingError, 0, "")
	dl.Original.Priority = domain.PriorityCritical
	dl.Original.TenantID = "tenant-a"

	got := calculatePriorityScore(dl)
	want := 0.4 + 0.3 + 0.1
	if got < want-0.0001 || got > want+0.0001 {
		t.Errorf("expected %v (base+critical boost+tenant boost), got %v", want, got)
	}
}

func TestCalculatePriorityScorePoisonMultiplierAndClamp(t *testing.T) {
	dl := newDeadLetter("m1", domain.FailureCircuitBreakerOpen, 0, "")
	dl.Original.Priority = domain.PriorityCritical
	dl.Original.TenantID = "tenant-a"
	dl.Poison = true

	got := calculatePriorityScore(dl)
	want := (0.9 + 0.3 + 0.1) * 0.1
	if got < want-0.0001 || got > want+0.0001 {
		t.Errorf("expected poison score %v, got %v", want, got)
	}
	if got > 1 || got < 0 {
		t.Errorf("expected score clamped to [0,1], got %v", got)
	}
}

func TestGenerateRecoveryPlanPerReason(t *testing.T) {
	cases := []struct {
		reason domain.FailureReason
		action domain.RecoveryAction
	}{
		{domain.FailureTimeout, domain.ActionRetry},
		{domain.FailureConsumerUnavailable, domain.ActionRouteAlternative},
		{domain.FailureInvalidFormat, domain.ActionTransformRetry},
		{domain.FailureProcessingError, domain.ActionRetry},
		{domain.FailurePoisonMessage, domain.ActionDiscard},
		{domain.FailurePermissionDenied, domain.ActionManualIntervention},
	}
	for _, tc := range cases {
		dl := newDeadLetter("m1", tc.reason, 0, "")
		plan := generateRecoveryPlan(dl)
		if len(plan) == 0 {
			t.Fatalf("expected a non-empty recovery plan for %s", tc.reason)
		}
		if plan[0].Action != tc.action {
			t.Errorf("%s: expected first recovery action %s, got %s", tc.reason, tc.action, plan[0].Action)
		}
	}
}

func TestHighestConfidence(t *testing.T) {
	plan := []domain.RecoveryStep{
		{Action: domain.ActionRetry, Confidence: 0.5},
		{Action: domain.ActionManualIntervention, Confidence: 0.9},
	}
	if got := highestConfidence(plan); got != 0.9 {
		t.Errorf("expected 0.9, got %v", got)
	}
}

func TestPatternTrackerCapsAtHundred(t *testing.T) {
	tracker := newPatternTracker()
	for i := 0; i < 150; i++ {
		dl := newDeadLetter("m", domain.FailureTimeout, 0, "")
		dl.ID = "id-" + string(rune('a'+i%26)) + string(rune(i))
		dl.Failure.SourceService = "svc"
		tracker.record(dl)
	}
	ids := tracker.ids(domain.FailureTimeout, "svc")
	if len(ids) != patternCap {
		t.Errorf("expected tracker to cap at %d entries, got %d", patternCap, len(ids))
	}
}

func TestArchiveStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := newArchiveStore(dir)
	dl := newDeadLetter("m1", domain.FailureTimeout, 0, "boom")

	if err := store.archive(dl); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, dl.ID+".json")); err != nil {
		t.Fatalf("expected archived file on disk: %v", err)
	}
	if err := store.remove(dl.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.remove(dl.ID); err != nil {
		t.Errorf("expected remove of an already-removed file to be a no-op, got %v", err)
	}
}

func TestHandleFailedMessageClassifiesAndScores(t *testing.T) {
	h := New(testConfig(), nil)
	msg := testQueuedMessage("m1", domain.FailureCircuitBreakerOpen, 0)

	id := h.HandleFailedMessage(msg, domain.FailureCircuitBreakerOpen, "breaker open", "invoice-queue", "invoice-service", "")
	if id == "" {
		t.Fatal("expected a non-empty dead letter id")
	}
	stats := h.GetStats()
	if stats.TotalMessages != 1 {
		t.Errorf("expected total_messages=1, got %d", stats.TotalMessages)
	}
	if stats.ByReason[domain.FailureCircuitBreakerOpen] != 1 {
		t.Errorf("expected ByReason[CIRCUIT_BREAKER_OPEN]=1, got %d", stats.ByReason[domain.FailureCircuitBreakerOpen])
	}
	if h.Count() != 1 {
		t.Errorf("expected 1 resident dead letter, got %d", h.Count())
	}
}

func TestHandleFailedMessageDetectsPoisonByRetryCount(t *testing.T) {
	h := New(testConfig(), nil)
	msg := testQueuedMessage("m1", domain.FailureProcessingError, 5)
	msg.RetryCount = 5

	h.HandleFailedMessage(msg, domain.FailureProcessingError, "still failing", "invoice-queue", "invoice-service", "")
	list := h.ListDeadLetters(ListFilter{PoisonOnly: true}, 0)
	if len(list) != 1 {
		t.Fatalf("expected 1 poison dead letter, got %d", len(list))
	}
}

func TestRecoverMessageRespectsMaxAttempts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRecoveryAttempts = 2
	h := New(cfg, nil)
	msg := testQueuedMessage("m1", domain.FailurePermissionDenied, 0)
	id := h.HandleFailedMessage(msg, domain.FailurePermissionDenied, "denied", "q", "svc", "")

	// ActionManualIntervention's handler always reports failure, so every
	// call below consumes one of the 2 allowed attempts without recovering.
	if h.RecoverMessage(id, domain.ActionManualIntervention) {
		t.Fatal("expected manual intervention handler to report failure")
	}
	if h.RecoverMessage(id, domain.ActionManualIntervention) {
		t.Fatal("expected second attempt to also report failure")
	}
	if h.RecoverMessage(id, domain.ActionManualIntervention) {
		t.Error("expected a third attempt beyond max_recovery_attempts to be rejected outright")
	}
}

func TestRecoverMessageSuccessRemovesFromActiveSet(t *testing.T) {
	h := New(testConfig(), nil)
	msg := testQueuedMessage("m1", domain.FailureTimeout, 0)
	id := h.HandleFailedMessage(msg, domain.FailureTimeout, "timed out", "q", "svc", "")

	if !h.RecoverMessage(id, domain.ActionRetry) {
		t.Fatal("expected recovery via RETRY to succeed")
	}
	if h.Count() != 0 {
		t.Errorf("expected dead letter removed after successful recovery, got count=%d", h.Count())
	}
}

func TestReplayMessageResetsStateAndRemoves(t *testing.T) {
	h := New(testConfig(), nil)
	msg := testQueuedMessage("m1", domain.FailureConsumerUnavailable, 2)
	msg.Status = domain.StatusDeadLetter
	msg.ConsumerID = "consumer-1"
	id := h.HandleFailedMessage(msg, domain.FailureConsumerUnavailable, "down", "q", "svc", "")

	if !h.ReplayMessage(id, "q-retry") {
		t.Fatal("expected replay to succeed")
	}
	if h.Count() != 0 {
		t.Errorf("expected dead letter removed after replay, got count=%d", h.Count())
	}
	stats := h.GetStats()
	if stats.RecoveredMessages != 1 {
		t.Errorf("expected recovered_messages=1, got %d", stats.RecoveredMessages)
	}
}

func TestDiscardMessageArchivesAndRemoves(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.StorageDir = dir
	h := New(cfg, nil)
	msg := testQueuedMessage("m1", domain.FailurePoisonMessage, 10)
	id := h.HandleFailedMessage(msg, domain.FailurePoisonMessage, "poison", "q", "svc", "")

	if !h.DiscardMessage(id, "unrecoverable") {
		t.Fatal("expected discard to succeed")
	}
	if h.Count() != 0 {
		t.Errorf("expected dead letter removed after discard, got count=%d", h.Count())
	}
	stats := h.GetStats()
	if stats.DiscardedMessages != 1 {
		t.Errorf("expected discarded_messages=1, got %d", stats.DiscardedMessages)
	}
}

func TestListDeadLettersFiltersAndSortsByPriority(t *testing.T) {
	h := New(testConfig(), nil)
	h.HandleFailedMessage(testQueuedMessage("low", domain.FailurePermissionDenied, 0), domain.FailurePermissionDenied, "denied", "q", "svc-a", "")
	h.HandleFailedMessage(testQueuedMessage("high", domain.FailureCircuitBreakerOpen, 0), domain.FailureCircuitBreakerOpen, "open", "q", "svc-b", "")

	all := h.ListDeadLetters(ListFilter{}, 0)
	if len(all) != 2 {
		t.Fatalf("expected 2 dead letters, got %d", len(all))
	}
	if all[0].Failure.Reason != domain.FailureCircuitBreakerOpen {
		t.Errorf("expected highest-priority reason first, got %s", all[0].Failure.Reason)
	}

	filtered := h.ListDeadLetters(ListFilter{SourceQueue: "q", Reason: domain.FailurePermissionDenied}, 0)
	if len(filtered) != 1 {
		t.Fatalf("expected 1 match for reason filter, got %d", len(filtered))
	}
}

func TestRunCleanupArchivesStaleEntries(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.StorageDir = dir
	cfg.RetentionDays = 1
	h := New(cfg, nil)

	id := h.HandleFailedMessage(testQueuedMessage("m1", domain.FailureTimeout, 0), domain.FailureTimeout, "timeout", "q", "svc", "")
	backdated := time.Now().AddDate(0, 0, -2)
	h.mu.Lock()
	h.dead[id].Failure.FailedAt = backdated
	h.mu.Unlock()
	h.retention.Update(id, backdated)

	h.runCleanup()

	if h.Count() != 0 {
		t.Errorf("expected stale dead letter archived and removed, got count=%d", h.Count())
	}
	if _, err := os.Stat(filepath.Join(dir, id+".json")); err != nil {
		t.Errorf("expected cleanup to archive the stale entry: %v", err)
	}
}

func TestRunCleanupOnlyArchivesPastCutoff(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDir = t.TempDir()
	cfg.RetentionDays = 1
	h := New(cfg, nil)

	staleID := h.HandleFailedMessage(testQueuedMessage("stale", domain.FailureTimeout, 0), domain.FailureTimeout, "timeout", "q", "svc", "")
	freshID := h.HandleFailedMessage(testQueuedMessage("fresh", domain.FailureTimeout, 0), domain.FailureTimeout, "timeout", "q", "svc", "")

	backdated := time.Now().AddDate(0, 0, -2)
	h.mu.Lock()
	h.dead[staleID].Failure.FailedAt = backdated
	h.mu.Unlock()
	h.retention.Update(staleID, backdated)

	h.runCleanup()

	if h.Count() != 1 {
		t.Fatalf("expected only the stale entry archived, count=%d", h.Count())
	}
	h.mu.RLock()
	_, freshStillResident := h.dead[freshID]
	h.mu.RUnlock()
	if !freshStillResident {
		t.Error("expected the entry within the retention window to remain resident")
	}
	if h.retention.Get(staleID) != nil {
		t.Error("expected the archived entry removed from the retention heap")
	}
	if h.retention.Get(freshID) == nil {
		t.Error("expected the resident entry to remain tracked in the retention heap")
	}
}

func TestRetentionHeapClearedOnRecoverAndDiscard(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDir = t.TempDir()
	h := New(cfg, nil)

	recoveredID := h.HandleFailedMessage(testQueuedMessage("r1", domain.FailureTimeout, 0), domain.FailureTimeout, "timeout", "q", "svc", "")
	h.RecoverMessage(recoveredID, domain.ActionRetry)
	if h.retention.Get(recoveredID) != nil {
		t.Error("expected recovered entry removed from the retention heap")
	}

	discardedID := h.HandleFailedMessage(testQueuedMessage("d1", domain.FailureTimeout, 0), domain.FailureTimeout, "timeout", "q", "svc", "")
	h.DiscardMessage(discardedID, "manual cleanup")
	if h.retention.Get(discardedID) != nil {
		t.Error("expected discarded entry removed from the retention heap")
	}
}
