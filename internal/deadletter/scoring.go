// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import "github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"

// reasonBaseScore is the base-by-reason term of the priority score
// formula, per spec.md §4.9.
var reasonBaseScore = map[domain.FailureReason]float64{
	domain.FailureCircuitBreakerOpen:  0.9,
	domain.FailureDependencyFailure:   0.8,
	domain.FailureResourceUnavailable: 0.7,
	domain.FailureConsumerUnavailable: 0.6,
	domain.FailureTimeout:             0.5,
	domain.FailureProcessingError:     0.4,
	domain.FailureRetryExhausted:      0.3,
	domain.FailurePermissionDenied:    0.2,
	domain.FailureInvalidFormat:       0.1,
	domain.FailurePoisonMessage:       0.0,
}

const defaultReasonScore = 0.3

func priorityBoost(p domain.Priority) float64 {
	switch {
	case p >= domain.PriorityCritical:
		return 0.3
	case p >= domain.PriorityHigh:
		return 0.2
	case p >= domain.PriorityNormal:
		return 0.1
	default:
		return 0.0
	}
}

// calculatePriorityScore implements spec.md §4.9's formula: base score by
// failure reason, plus a message-priority boost, plus a flat tenant
// boost when a tenant is present, multiplied by 0.1 if the message was
// flagged poison, clamped to [0, 1].
func calculatePriorityScore(dl *domain.DeadLetterMessage) float64 {
	score, ok := reasonBaseScore[dl.Failure.Reason]
	if !ok {
		score = defaultReasonScore
	}

	score += priorityBoost(dl.Original.Priority)

	if dl.Original.TenantID != "" {
		score += 0.1
	}

	if dl.Poison {
		score *= 0.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
