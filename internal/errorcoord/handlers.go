// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package errorcoord

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// builtinServiceBreaker is C10's own lightweight per-service failure
// counter, distinct from C7's actual gobreaker-backed state machine: the
// facade only sees reported errors, not call outcomes, so it keeps its
// own threshold-crossing tally per the original implementation's
// self.circuit_breakers dict. It does not consult a breaker.Registry.
type builtinServiceBreaker struct {
	failureCount int
	lastFailure  time.Time
	state        string // "closed", "open", "half-open"
}

// handleValidationError emits error.validation_failed for downstream
// rule-tuning; validation errors are never auto-recovered.
func (h *Handler) handleValidationError(rec *domain.ErrorRecord) {
	h.emit("error.validation_failed", map[string]any{
		"error_id":  rec.ErrorID,
		"operation": rec.Context.OperationName,
		"service":   rec.Context.ServiceName,
	})
}

// handleAuthenticationError triggers a token-refresh event when the
// message indicates an expired token.
func (h *Handler) handleAuthenticationError(rec *domain.ErrorRecord) {
	lower := strings.ToLower(rec.ErrorMessage)
	if strings.Contains(lower, "token") && strings.Contains(lower, "expired") {
		h.emit("auth.token_refresh_required", map[string]any{
			"error_id":   rec.ErrorID,
			"user_id":    rec.Context.UserID,
			"session_id": rec.Context.SessionID,
		})
	}
}

// handleIntegrationError increments the per-service failure tally and
// opens C10's own breaker view (emitting circuit_breaker.opened) once
// circuit_breaker_threshold is reached.
func (h *Handler) handleIntegrationError(rec *domain.ErrorRecord) {
	service := rec.Context.ServiceName

	h.mu.Lock()
	breaker, ok := h.breakers[service]
	if !ok {
		breaker = &builtinServiceBreaker{state: "closed"}
		h.breakers[service] = breaker
	}
	breaker.failureCount++
	breaker.lastFailure = time.Now().UTC()
	opened := false
	if breaker.failureCount >= h.cfg.CircuitBreakerThreshold && breaker.state != "open" {
		breaker.state = "open"
		opened = true
	}
	h.mu.Unlock()

	if opened {
		h.emit("circuit_breaker.opened", map[string]any{
			"service_name": service,
			"error_id":     rec.ErrorID,
		})
	}
}

// handleNetworkError proposes a retry recovery plan whose backoff delay
// grows linearly (30s per attempt, capped at 300s), bounded by
// max_retry_attempts.
func (h *Handler) handleNetworkError(rec *domain.ErrorRecord) {
	if rec.RetryCount >= h.cfg.MaxRetryAttempts {
		return
	}
	delay := 30 * (rec.RetryCount + 1)
	if delay > 300 {
		delay = 300
	}
	plan := &domain.ErrorRecoveryPlan{
		PlanID:                   uuid.NewString(),
		ErrorID:                  rec.ErrorID,
		Actions:                  []domain.ErrorRecoveryAction{domain.ErrorActionRetry},
		Priority:                 2,
		EstimatedDurationMinutes: 1,
		SuccessProbability:       0.7,
		Metadata:                 map[string]any{"retry_delay_seconds": delay},
	}
	h.storePlan(plan)
	h.emit("error.recovery_plan_created", map[string]any{
		"error_id": rec.ErrorID,
		"plan_id":  plan.PlanID,
	})
}

// handleDatabaseError distinguishes constraint violations (no retry,
// needs a data fix) from timeouts (retry with a query-optimization hint).
func (h *Handler) handleDatabaseError(rec *domain.ErrorRecord) {
	lower := strings.ToLower(rec.ErrorMessage)
	switch {
	case strings.Contains(lower, "constraint"):
		h.emit("error.constraint_violation", map[string]any{
			"error_id":  rec.ErrorID,
			"operation": rec.Context.OperationName,
		})
	case strings.Contains(lower, "timeout"):
		plan := &domain.ErrorRecoveryPlan{
			PlanID:                   uuid.NewString(),
			ErrorID:                  rec.ErrorID,
			Actions:                  []domain.ErrorRecoveryAction{domain.ErrorActionRetry},
			Priority:                 3,
			EstimatedDurationMinutes: 2,
			SuccessProbability:       0.5,
			Metadata:                 map[string]any{"optimize_query": true},
		}
		h.storePlan(plan)
	}
}

// handleSystemError escalates critical/high severity system errors.
func (h *Handler) handleSystemError(rec *domain.ErrorRecord) {
	if rec.Severity == domain.SeverityCritical || rec.Severity == domain.SeverityHigh {
		h.emit("error.escalation_required", map[string]any{
			"error_id": rec.ErrorID,
			"severity": string(rec.Severity),
			"source":   string(rec.Source),
		})
	}
}

// defaultHandlers wires one builtin handler per ErrorType, matching the
// original's _initialize_default_handlers registration.
func (h *Handler) defaultHandlers() map[domain.ErrorType][]func(*domain.ErrorRecord) {
	return map[domain.ErrorType][]func(*domain.ErrorRecord){
		domain.ErrorValidation:     {h.handleValidationError},
		domain.ErrorAuthentication: {h.handleAuthenticationError},
		domain.ErrorIntegration:    {h.handleIntegrationError},
		domain.ErrorNetwork:        {h.handleNetworkError},
		domain.ErrorDatabase:       {h.handleDatabaseError},
		domain.ErrorSystem:         {h.handleSystemError},
	}
}
