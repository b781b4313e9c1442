// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/cache"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/eventbus"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// Handler is the Dead Letter Handler (C9): classifies failed messages,
// detects poison, scores priority, tracks patterns, and drives recovery.
// It implements suture.Service (Serve(ctx) error) so the analysis,
// recovery-attempt, and cleanup loops run under the shared reliability
// supervision layer alongside C8's checkers.
type Handler struct {
	cfg   config.DeadLetterConfig
	bus   *eventbus.Bus
	store *archiveStore

	detectors []Detector
	analyzers map[domain.FailureReason]Analyzer
	recovery  map[domain.RecoveryAction]RecoveryHandler
	patterns  *patternTracker
	// retention orders resident dead letters by FailedAt so runCleanup can
	// pop everything past the retention cutoff in O(k log n) instead of
	// scanning the full dead map.
	retention *cache.MinHeap[string]

	mu    sync.RWMutex
	dead  map[string]*domain.DeadLetterMessage
	plans map[string][]domain.RecoveryStep
	stats Stats
}

// New builds a Handler. bus may be nil to skip event emission (useful
// for unit tests that only exercise classification/scoring).
func New(cfg config.DeadLetterConfig, bus *eventbus.Bus) *Handler {
	return &Handler{
		cfg:       cfg,
		bus:       bus,
		store:     newArchiveStore(cfg.StorageDir),
		detectors: builtinDetectors(cfg),
		analyzers: defaultAnalyzers(),
		recovery:  defaultRecoveryHandlers(),
		patterns:  newPatternTracker(),
		retention: cache.NewMinHeap[string](0),
		dead:      make(map[string]*domain.DeadLetterMessage),
		plans:     make(map[string][]domain.RecoveryStep),
		stats: Stats{
			ByReason: make(map[domain.FailureReason]int64),
			BySource: make(map[string]int64),
		},
	}
}

// HandleFailedMessage registers a newly failed message, classifying it
// (poison detection, priority scoring, pattern tracking) and — for
// high-priority messages — running immediate analysis and recovery-plan
// generation. Returns the new dead letter's id.
func (h *Handler) HandleFailedMessage(original domain.QueuedMessage, reason domain.FailureReason, errMsg, sourceQueue, sourceService string, stackTrace string) string {
	dl := &domain.DeadLetterMessage{
		ID:       uuid.NewString(),
		Original: original,
		Failure: domain.FailureContext{
			FailureID:     uuid.NewString(),
			Reason:        reason,
			ErrorMessage:  errMsg,
			SourceService: sourceService,
			SourceQueue:   sourceQueue,
			FailedAt:      time.Now().UTC(),
			RetryCount:    original.RetryCount,
			StackTrace:    stackTrace,
		},
	}

	h.mu.Lock()
	recent := h.recentLocked()
	dl.Poison = detectPoison(h.detectors, dl, recent)
	dl.PriorityScore = calculatePriorityScore(dl)

	h.dead[dl.ID] = dl
	h.stats.TotalMessages++
	h.stats.ByReason[reason]++
	h.stats.BySource[sourceService]++
	if dl.Poison {
		h.stats.PoisonMessages++
	}
	h.mu.Unlock()

	h.retention.Push(dl.ID, dl.ID, dl.Failure.FailedAt)
	h.patterns.record(dl)
	metrics.DeadLetterReceived.WithLabelValues(string(reason)).Inc()
	if dl.Poison {
		metrics.DeadLetterPoisonDetected.Inc()
	}
	metrics.DeadLetterQueueSize.Set(float64(h.Count()))

	if dl.PriorityScore > 0.8 {
		h.analyze(dl)
	}

	h.emit("dead_letter.message.received", dl)
	logging.Warn().Str("dead_letter_id", dl.ID).Str("reason", string(reason)).Msg("message sent to dead letter handler")
	return dl.ID
}

// recentLocked returns every currently-resident dead letter, for the
// recurring-failure poison detector. Must be called with h.mu held.
func (h *Handler) recentLocked() []*domain.DeadLetterMessage {
	out := make([]*domain.DeadLetterMessage, 0, len(h.dead))
	for _, dl := range h.dead {
		out = append(out, dl)
	}
	return out
}

// analyze runs the per-reason analyzer and generates a recovery plan.
func (h *Handler) analyze(dl *domain.DeadLetterMessage) {
	analyzer, ok := h.analyzers[dl.Failure.Reason]
	if !ok {
		return
	}
	results := analyzer(dl)

	plan := generateRecoveryPlan(dl)

	h.mu.Lock()
	dl.AnalysisResults = results
	dl.RecoveryPlan = plan
	h.plans[dl.ID] = plan
	h.mu.Unlock()
}

// RecoverMessage attempts recoveryAction against the named dead letter,
// bounded by max_recovery_attempts.
func (h *Handler) RecoverMessage(id string, action domain.RecoveryAction) bool {
	h.mu.Lock()
	dl, ok := h.dead[id]
	if !ok {
		h.mu.Unlock()
		return false
	}
	maxAttempts := h.cfg.MaxRecoveryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if dl.RecoveryAttempts >= maxAttempts {
		h.mu.Unlock()
		logging.Warn().Str("dead_letter_id", id).Msg("max recovery attempts exceeded")
		return false
	}
	dl.RecoveryAttempts++
	h.mu.Unlock()

	handler, ok := h.recovery[action]
	if !ok {
		return false
	}
	success := handler(dl)
	outcome := "failed"
	if success {
		outcome = "succeeded"
		h.markRecovered(id)
	}
	metrics.DeadLetterRecoveries.WithLabelValues(string(action), outcome).Inc()
	return success
}

func (h *Handler) markRecovered(id string) {
	h.mu.Lock()
	delete(h.dead, id)
	delete(h.plans, id)
	h.stats.RecoveredMessages++
	h.mu.Unlock()
	h.retention.Remove(id)
	metrics.DeadLetterQueueSize.Set(float64(h.Count()))
}

// ReplayMessage resets a dead letter's original message state and emits
// a replay event for the queue layer to re-enqueue, then marks it
// recovered. targetQueue is carried in the event payload only — actually
// re-enqueueing onto that queue is the caller's responsibility (the
// queue manager subscribes to this event in the platform wiring layer).
func (h *Handler) ReplayMessage(id, targetQueue string) bool {
	h.mu.Lock()
	dl, ok := h.dead[id]
	if !ok {
		h.mu.Unlock()
		return false
	}
	dl.Original.RetryCount = 0
	dl.Original.Status = domain.StatusQueued
	dl.Original.ConsumerID = ""
	h.mu.Unlock()

	h.emitWithPayload("dead_letter.message.replay", dl, map[string]any{
		"target_queue": targetQueue,
	})
	h.markRecovered(id)
	logging.Info().Str("dead_letter_id", id).Str("target_queue", targetQueue).Msg("dead letter replayed")
	return true
}

// DiscardMessage permanently archives and removes a dead letter.
func (h *Handler) DiscardMessage(id, reason string) bool {
	h.mu.Lock()
	dl, ok := h.dead[id]
	if !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.dead, id)
	delete(h.plans, id)
	h.stats.DiscardedMessages++
	h.mu.Unlock()
	h.retention.Remove(id)

	now := time.Now().UTC()
	dl.ArchivedAt = &now
	if err := h.store.archive(dl); err != nil {
		logging.Err(err).Str("dead_letter_id", id).Msg("dead letter archive failed")
	}

	h.emitWithPayload("dead_letter.message.discarded", dl, map[string]any{"reason": reason})
	metrics.DeadLetterQueueSize.Set(float64(h.Count()))
	logging.Info().Str("dead_letter_id", id).Str("reason", reason).Msg("dead letter discarded")
	return true
}

// ListDeadLetters returns resident dead letters matching filter, sorted
// by priority score descending, capped at limit (0 means unlimited).
func (h *Handler) ListDeadLetters(filter ListFilter, limit int) []*domain.DeadLetterMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*domain.DeadLetterMessage, 0, len(h.dead))
	for _, dl := range h.dead {
		if filter.Reason != "" && dl.Failure.Reason != filter.Reason {
			continue
		}
		if filter.SourceQueue != "" && dl.Failure.SourceQueue != filter.SourceQueue {
			continue
		}
		if filter.PoisonOnly && !dl.Poison {
			continue
		}
		if !filter.Since.IsZero() && dl.Failure.FailedAt.Before(filter.Since) {
			continue
		}
		out = append(out, dl)
	}

	sortByPriorityDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortByPriorityDesc(messages []*domain.DeadLetterMessage) {
	for i := 1; i < len(messages); i++ {
		for j := i; j > 0 && messages[j-1].PriorityScore < messages[j].PriorityScore; j-- {
			messages[j-1], messages[j] = messages[j], messages[j-1]
		}
	}
}

// GetStats returns a snapshot of the handler's cumulative counters.
func (h *Handler) GetStats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := Stats{
		TotalMessages:     h.stats.TotalMessages,
		PoisonMessages:    h.stats.PoisonMessages,
		RecoveredMessages: h.stats.RecoveredMessages,
		DiscardedMessages: h.stats.DiscardedMessages,
		ByReason:          make(map[domain.FailureReason]int64, len(h.stats.ByReason)),
		BySource:          make(map[string]int64, len(h.stats.BySource)),
	}
	for k, v := range h.stats.ByReason {
		s.ByReason[k] = v
	}
	for k, v := range h.stats.BySource {
		s.BySource[k] = v
	}
	return s
}

// Count returns the number of dead letters currently resident.
func (h *Handler) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.dead)
}

func (h *Handler) emit(eventType string, dl *domain.DeadLetterMessage) {
	h.emitWithPayload(eventType, dl, nil)
}

func (h *Handler) emitWithPayload(eventType string, dl *domain.DeadLetterMessage, extra map[string]any) {
	if h.bus == nil {
		return
	}
	payload := map[string]any{
		"dead_letter_id": dl.ID,
		"reason":         string(dl.Failure.Reason),
		"priority_score": dl.PriorityScore,
		"poison":         dl.Poison,
	}
	for k, v := range extra {
		payload[k] = v
	}
	h.bus.Emit(eventType, payload, "dead_letter_handler", domain.ScopeGlobal, domain.PriorityHigh)
}

// Serve runs the analysis, automatic-recovery, and retention-cleanup
// loops until ctx is canceled.
func (h *Handler) Serve(ctx context.Context) error {
	analysisTick := 60 * time.Second
	recoveryTick := 5 * time.Minute
	cleanupTick := h.cfg.CleanupTick
	if cleanupTick <= 0 {
		cleanupTick = time.Hour
	}

	analysisTimer := time.NewTicker(analysisTick)
	recoveryTimer := time.NewTicker(recoveryTick)
	cleanupTimer := time.NewTicker(cleanupTick)
	defer analysisTimer.Stop()
	defer recoveryTimer.Stop()
	defer cleanupTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-analysisTimer.C:
			h.runAnalysisPass()
		case <-recoveryTimer.C:
			h.runAutoRecoveryPass()
		case <-cleanupTimer.C:
			h.runCleanup()
		}
	}
}

func (h *Handler) runAnalysisPass() {
	h.mu.RLock()
	pending := make([]*domain.DeadLetterMessage, 0)
	for _, dl := range h.dead {
		if dl.AnalysisResults == nil {
			pending = append(pending, dl)
		}
	}
	h.mu.RUnlock()

	for _, dl := range pending {
		h.analyze(dl)
	}
}

const autoRecoveryMinConfidence = 0.8

func (h *Handler) runAutoRecoveryPass() {
	threshold := h.cfg.AutoRecoveryMinConfidence
	if threshold <= 0 {
		threshold = autoRecoveryMinConfidence
	}

	h.mu.RLock()
	type candidate struct {
		id   string
		plan []domain.RecoveryStep
	}
	candidates := make([]candidate, 0)
	for id, plan := range h.plans {
		if highestConfidence(plan) > threshold {
			candidates = append(candidates, candidate{id: id, plan: plan})
		}
	}
	h.mu.RUnlock()

	for _, c := range candidates {
		for _, step := range c.plan {
			if h.RecoverMessage(c.id, step.Action) {
				break
			}
		}
	}
}

func (h *Handler) runCleanup() {
	retentionDays := h.cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	expired := h.retention.PopBefore(cutoff)
	if len(expired) == 0 {
		return
	}

	h.mu.Lock()
	stale := make([]*domain.DeadLetterMessage, 0, len(expired))
	for _, entry := range expired {
		if dl, ok := h.dead[entry.Key]; ok {
			stale = append(stale, dl)
			delete(h.dead, entry.Key)
			delete(h.plans, entry.Key)
		}
	}
	h.mu.Unlock()

	for _, dl := range stale {
		now := time.Now().UTC()
		dl.ArchivedAt = &now
		if err := h.store.archive(dl); err != nil {
			logging.Err(err).Str("dead_letter_id", dl.ID).Msg("dead letter cleanup archive failed")
		}
	}
	if len(stale) > 0 {
		metrics.DeadLetterQueueSize.Set(float64(h.Count()))
		logging.Info().Int("count", len(stale)).Msg("dead letter retention cleanup archived stale entries")
	}
}
