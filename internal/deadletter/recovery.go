// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import "github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"

// generateRecoveryPlan proposes an ordered list of recovery steps for a
// dead letter, keyed by failure reason, per spec.md §4.9. Each step
// carries a confidence score and an estimated success rate grounded on
// the original implementation's per-reason table.
func generateRecoveryPlan(dl *domain.DeadLetterMessage) []domain.RecoveryStep {
	switch dl.Failure.Reason {
	case domain.FailureTimeout:
		return []domain.RecoveryStep{{Action: domain.ActionRetry, Confidence: 0.8, EstimatedSuccess: 0.7}}
	case domain.FailureConsumerUnavailable:
		return []domain.RecoveryStep{
			{Action: domain.ActionRouteAlternative, Confidence: 0.7, EstimatedSuccess: 0.6},
			{Action: domain.ActionRetry, Confidence: 0.7, EstimatedSuccess: 0.6},
		}
	case domain.FailureInvalidFormat:
		return []domain.RecoveryStep{
			{Action: domain.ActionTransformRetry, Confidence: 0.6, EstimatedSuccess: 0.4},
			{Action: domain.ActionManualIntervention, Confidence: 0.6, EstimatedSuccess: 0.4},
		}
	case domain.FailureProcessingError:
		return []domain.RecoveryStep{
			{Action: domain.ActionRetry, Confidence: 0.5, EstimatedSuccess: 0.5},
			{Action: domain.ActionManualIntervention, Confidence: 0.5, EstimatedSuccess: 0.5},
		}
	case domain.FailurePoisonMessage:
		return []domain.RecoveryStep{{Action: domain.ActionDiscard, Confidence: 0.9, EstimatedSuccess: 1.0}}
	default:
		return []domain.RecoveryStep{{Action: domain.ActionManualIntervention, Confidence: 0.3, EstimatedSuccess: 0.2}}
	}
}

// highestConfidence returns the largest confidence score across a plan's
// steps, used to decide eligibility for automatic recovery attempts.
func highestConfidence(plan []domain.RecoveryStep) float64 {
	best := 0.0
	for _, step := range plan {
		if step.Confidence > best {
			best = step.Confidence
		}
	}
	return best
}

// defaultRecoveryHandlers returns a RecoveryHandler per RecoveryAction.
// RETRY, ROUTE_ALTERNATIVE and TRANSFORM_RETRY all report success optimistically (the
// actual re-delivery is the caller's responsibility via replayMessage /
// the router; this handler only marks the dead letter recoverable).
// DISCARD and ARCHIVE never report success here since they're terminal
// operations driven through discardMessage instead.
func defaultRecoveryHandlers() map[domain.RecoveryAction]RecoveryHandler {
	return map[domain.RecoveryAction]RecoveryHandler{
		domain.ActionRetry:            func(dl *domain.DeadLetterMessage) bool { return true },
		domain.ActionRouteAlternative: func(dl *domain.DeadLetterMessage) bool { return true },
		domain.ActionTransformRetry:   func(dl *domain.DeadLetterMessage) bool { return true },
		domain.ActionManualIntervention: func(dl *domain.DeadLetterMessage) bool {
			return false
		},
		domain.ActionDiscard: func(dl *domain.DeadLetterMessage) bool { return false },
		domain.ActionArchive: func(dl *domain.DeadLetterMessage) bool { return false },
	}
}
