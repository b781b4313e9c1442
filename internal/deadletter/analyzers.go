// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"strings"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

var transientErrorKeywords = []string{"timeout", "connection", "unavailable", "temporary", "retry"}

func isTransientError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range transientErrorKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func classifyError(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "connection"):
		return "connectivity"
	case strings.Contains(lower, "permission"), strings.Contains(lower, "denied"):
		return "authorization"
	case strings.Contains(lower, "json"), strings.Contains(lower, "parse"), strings.Contains(lower, "schema"):
		return "format"
	default:
		return "unknown"
	}
}

// defaultAnalyzers returns one Analyzer per FailureReason, grounded on
// the original implementation's per-reason analyzer set.
func defaultAnalyzers() map[domain.FailureReason]Analyzer {
	return map[domain.FailureReason]Analyzer{
		domain.FailureProcessingError: func(dl *domain.DeadLetterMessage) map[string]any {
			transient := isTransientError(dl.Failure.ErrorMessage)
			action := "investigate"
			if transient {
				action = "retry"
			}
			return map[string]any{
				"error_type":       classifyError(dl.Failure.ErrorMessage),
				"is_transient":     transient,
				"suggested_action": action,
			}
		},
		domain.FailureTimeout: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"likely_cause":     "resource_contention",
				"suggested_action": "retry_with_backoff",
				"confidence":       0.8,
			}
		},
		domain.FailureInvalidFormat: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"error_type":       "format",
				"suggested_action": "transform_retry",
			}
		},
		domain.FailureConsumerUnavailable: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"likely_cause":     "consumer_down",
				"suggested_action": "route_alternative",
			}
		},
		domain.FailureRetryExhausted: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"retry_count":      dl.Failure.RetryCount,
				"suggested_action": "manual_intervention",
			}
		},
		domain.FailurePoisonMessage: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"suggested_action": "discard",
			}
		},
		domain.FailureResourceUnavailable: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"likely_cause":     "resource_exhaustion",
				"suggested_action": "retry_with_backoff",
			}
		},
		domain.FailurePermissionDenied: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"error_type":       "authorization",
				"suggested_action": "manual_intervention",
			}
		},
		domain.FailureDependencyFailure: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"likely_cause":     "upstream_dependency",
				"suggested_action": "retry_with_backoff",
			}
		},
		domain.FailureCircuitBreakerOpen: func(dl *domain.DeadLetterMessage) map[string]any {
			return map[string]any{
				"likely_cause":     "downstream_circuit_open",
				"suggested_action": "route_alternative",
			}
		},
	}
}
