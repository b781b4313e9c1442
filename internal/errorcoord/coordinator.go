// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package errorcoord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/eventbus"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// Summary is the aggregate statistics returned by GetErrorSummary.
type Summary struct {
	TimeRange             time.Duration
	TotalErrors           int
	ResolutionRate        float64
	ErrorsByType          map[domain.ErrorType]int
	ErrorsBySeverity      map[domain.ErrorSeverity]int
	ErrorsBySource        map[domain.ErrorSource]int
	MostFrequentPatterns  []*domain.ErrorPattern
	ActiveCircuitBreakers int
	ActiveRecoveryPlans   int
}

// Handler is the error-coordination facade (C10). It fingerprints
// reported errors, aggregates them into patterns, dispatches built-in
// per-type handlers, and exposes read operations for status/summary
// reporting.
type Handler struct {
	cfg config.ErrorCoordConfig
	bus *eventbus.Bus

	mu       sync.RWMutex
	records  map[string]*domain.ErrorRecord
	patterns *patternStore
	plans    map[string]*domain.ErrorRecoveryPlan
	handlers map[domain.ErrorType][]func(*domain.ErrorRecord)
	breakers map[string]*builtinServiceBreaker
}

// New builds a Handler. bus may be nil to skip event emission (useful
// for unit tests exercising only fingerprinting/pattern aggregation).
func New(cfg config.ErrorCoordConfig, bus *eventbus.Bus) *Handler {
	h := &Handler{
		cfg:      cfg,
		bus:      bus,
		records:  make(map[string]*domain.ErrorRecord),
		patterns: newPatternStore(),
		plans:    make(map[string]*domain.ErrorRecoveryPlan),
		breakers: make(map[string]*builtinServiceBreaker),
	}
	h.handlers = h.defaultHandlers()
	return h
}

// RegisterHandler appends a custom handler for errType, run after the
// built-in handlers for that type (if any).
func (h *Handler) RegisterHandler(errType domain.ErrorType, handler func(*domain.ErrorRecord)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[errType] = append(h.handlers[errType], handler)
}

// HandleError creates an ErrorRecord for err, updates pattern tracking,
// runs the registered handlers for errType, and emits an error.occurred
// event. Returns the new record's id.
func (h *Handler) HandleError(err error, ctx domain.ErrorContext, errType domain.ErrorType, severity domain.ErrorSeverity, retryCount int) string {
	errorClass := errorClassName(err)
	rec := &domain.ErrorRecord{
		ErrorID:       uuid.NewString(),
		ErrorType:     errType,
		Severity:      severity,
		Source:        determineErrorSource(ctx),
		Context:       ctx,
		ErrorMessage:  err.Error(),
		OccurredAt:    time.Now().UTC(),
		Fingerprint:   fingerprint(errType, errorClass, ctx.ServiceName, ctx.OperationName, err.Error()),
		CorrelationID: correlationID(ctx),
		RetryCount:    retryCount,
		Status:        domain.ErrorStatusNew,
	}

	h.mu.Lock()
	h.records[rec.ErrorID] = rec
	h.patterns.record(rec)
	handlers := append([]func(*domain.ErrorRecord){}, h.handlers[errType]...)
	h.mu.Unlock()

	for _, handler := range handlers {
		handler(rec)
	}

	metrics.ErrorsHandled.WithLabelValues(string(errType), string(severity)).Inc()
	metrics.ErrorPatternsTracked.Set(float64(h.patternCount()))

	h.emit("error.occurred", map[string]any{
		"error_id":   rec.ErrorID,
		"error_type": string(errType),
		"severity":   string(severity),
		"source":     string(rec.Source),
		"service":    ctx.ServiceName,
		"operation":  ctx.OperationName,
	})

	logging.Error().Str("error_id", rec.ErrorID).Str("error_type", string(errType)).Str("service", ctx.ServiceName).Msg(rec.ErrorMessage)
	return rec.ErrorID
}

// errorClassName reports err's concrete Go type, standing in for the
// original implementation's type(exception).__name__.
func errorClassName(err error) string {
	if err == nil {
		return "error"
	}
	return fmt.Sprintf("%T", err)
}

func correlationID(ctx domain.ErrorContext) string {
	if ctx.TraceID != "" {
		return ctx.TraceID
	}
	if ctx.RequestID != "" {
		return ctx.RequestID
	}
	return uuid.NewString()
}

func (h *Handler) storePlan(plan *domain.ErrorRecoveryPlan) {
	h.mu.Lock()
	h.plans[plan.PlanID] = plan
	h.mu.Unlock()
}

func (h *Handler) patternCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.patterns.patterns)
}

func (h *Handler) emit(eventType string, payload map[string]any) {
	if h.bus == nil {
		return
	}
	h.bus.Emit(eventType, payload, "error_coordinator", domain.ScopeGlobal, domain.PriorityHigh)
}

// GetErrorStatus returns a copy of the named record (with its status and
// retry count) and its pattern's frequency and auto-recoverability. No
// recovery-plan count is returned.
func (h *Handler) GetErrorStatus(errorID string) (rec domain.ErrorRecord, patternFrequency int, autoRecoverable bool, found bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.records[errorID]
	if !ok {
		return domain.ErrorRecord{}, 0, false, false
	}
	if pattern, ok := h.patterns.patterns[r.Fingerprint]; ok {
		return *r, pattern.Frequency, pattern.AutoRecoveryEnabled, true
	}
	return *r, 1, false, true
}

// GetErrorPatterns returns patterns matching the given filters, sorted by
// frequency descending. Zero-value filters are unfiltered.
func (h *Handler) GetErrorPatterns(errType domain.ErrorType, source domain.ErrorSource, minFrequency int) []*domain.ErrorPattern {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*domain.ErrorPattern, 0, len(h.patterns.patterns))
	for _, p := range h.patterns.patterns {
		if errType != "" && p.ErrorType != errType {
			continue
		}
		if source != "" && p.Source != source {
			continue
		}
		if minFrequency > 0 && p.Frequency < minFrequency {
			continue
		}
		out = append(out, p)
	}
	sortPatternsByFrequencyDesc(out)
	return out
}

func sortPatternsByFrequencyDesc(patterns []*domain.ErrorPattern) {
	for i := 1; i < len(patterns); i++ {
		for j := i; j > 0 && patterns[j-1].Frequency < patterns[j].Frequency; j-- {
			patterns[j-1], patterns[j] = patterns[j], patterns[j-1]
		}
	}
}

// GetErrorSummary aggregates error counts and top patterns over the last
// timeRange.
func (h *Handler) GetErrorSummary(timeRange time.Duration) Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-timeRange)
	summary := Summary{
		TimeRange:        timeRange,
		ErrorsByType:     make(map[domain.ErrorType]int),
		ErrorsBySeverity: make(map[domain.ErrorSeverity]int),
		ErrorsBySource:   make(map[domain.ErrorSource]int),
	}

	resolved := 0
	for _, rec := range h.records {
		if rec.OccurredAt.Before(cutoff) {
			continue
		}
		summary.TotalErrors++
		summary.ErrorsByType[rec.ErrorType]++
		summary.ErrorsBySeverity[rec.Severity]++
		summary.ErrorsBySource[rec.Source]++
		if rec.Status == domain.ErrorStatusResolved {
			resolved++
		}
	}
	if summary.TotalErrors > 0 {
		summary.ResolutionRate = float64(resolved) / float64(summary.TotalErrors) * 100
	}

	patterns := make([]*domain.ErrorPattern, 0, len(h.patterns.patterns))
	for _, p := range h.patterns.patterns {
		patterns = append(patterns, p)
	}
	sortPatternsByFrequencyDesc(patterns)
	if len(patterns) > 5 {
		patterns = patterns[:5]
	}
	summary.MostFrequentPatterns = patterns

	for _, b := range h.breakers {
		if b.state == "open" {
			summary.ActiveCircuitBreakers++
		}
	}
	summary.ActiveRecoveryPlans = len(h.plans)

	return summary
}

// ResolveError marks an error resolved and stores the resolution notes;
// resolvedBy is not stored on the record, only sent in the error.resolved
// event.
func (h *Handler) ResolveError(errorID, resolutionNotes, resolvedBy string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.records[errorID]
	if !ok {
		return false
	}
	now := time.Now().UTC()
	rec.Status = domain.ErrorStatusResolved
	rec.ResolvedAt = &now
	rec.ResolutionNotes = resolutionNotes

	h.emit("error.resolved", map[string]any{
		"error_id":    errorID,
		"resolved_by": resolvedBy,
	})
	return true
}

// Serve runs the pattern-detector (escalation check) and retention
// cleanup loops until ctx is canceled, implementing suture.Service.
func (h *Handler) Serve(ctx context.Context) error {
	patternTick := h.cfg.PatternDetectorTick
	if patternTick <= 0 {
		patternTick = 5 * time.Minute
	}
	cleanupTick := h.cfg.CleanupTick
	if cleanupTick <= 0 {
		cleanupTick = 24 * time.Hour
	}

	patternTimer := time.NewTicker(patternTick)
	cleanupTimer := time.NewTicker(cleanupTick)
	defer patternTimer.Stop()
	defer cleanupTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-patternTimer.C:
			h.runEscalationCheck()
		case <-cleanupTimer.C:
			h.runCleanup()
		}
	}
}

func (h *Handler) runEscalationCheck() {
	h.mu.RLock()
	var toEscalate []*domain.ErrorPattern
	for _, p := range h.patterns.patterns {
		if p.Frequency >= p.EscalationThreshold {
			toEscalate = append(toEscalate, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range toEscalate {
		h.emit("error.pattern_escalation", map[string]any{
			"pattern_id": p.PatternID,
			"frequency":  p.Frequency,
			"threshold":  p.EscalationThreshold,
		})
		metrics.ErrorPatternEscalations.Inc()
	}
}

func (h *Handler) runCleanup() {
	retentionDays := h.cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	h.mu.Lock()
	defer h.mu.Unlock()
	removed := 0
	for id, rec := range h.records {
		if rec.Status == domain.ErrorStatusResolved && rec.ResolvedAt != nil && rec.ResolvedAt.Before(cutoff) {
			delete(h.records, id)
			removed++
		}
	}
	if removed > 0 {
		logging.Info().Int("count", removed).Msg("error coordinator cleaned up resolved records past retention")
	}
}
