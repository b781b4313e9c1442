// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package errorcoord

import "github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"

// suggestedActions proposes next steps for an error type, grounded on the
// original implementation's per-type suggestion lists.
func suggestedActions(errType domain.ErrorType) []string {
	switch errType {
	case domain.ErrorValidation:
		return []string{"Review input validation rules", "Check data format and constraints", "Verify schema compatibility"}
	case domain.ErrorAuthentication:
		return []string{"Verify authentication credentials", "Check token expiration", "Review authentication service status"}
	case domain.ErrorIntegration:
		return []string{"Check external service availability", "Verify API endpoints and credentials", "Review integration configuration"}
	case domain.ErrorNetwork:
		return []string{"Check network connectivity", "Verify firewall and proxy settings", "Review DNS resolution"}
	case domain.ErrorDatabase:
		return []string{"Check database connectivity", "Review query performance", "Verify database constraints"}
	case domain.ErrorTimeout:
		return []string{"Increase timeout values", "Optimize operation performance", "Check system load"}
	case domain.ErrorResource:
		return []string{"Monitor system resources", "Scale system capacity", "Optimize resource usage"}
	default:
		return []string{"Review error logs and stack trace", "Check system configuration", "Contact system administrator"}
	}
}

// escalationThreshold returns how many recurrences of a fingerprint are
// tolerated before the pattern detector emits an escalation event,
// scaled by severity.
func escalationThreshold(severity domain.ErrorSeverity) int {
	switch severity {
	case domain.SeverityCritical:
		return 1
	case domain.SeverityHigh:
		return 3
	case domain.SeverityMedium:
		return 5
	default:
		return 10
	}
}

var autoRecoverableTypes = map[domain.ErrorType]bool{
	domain.ErrorNetwork:     true,
	domain.ErrorTimeout:     true,
	domain.ErrorExternalAPI: true,
}

// isAutoRecoverable reports whether record's type is ordinarily
// self-healing via retry, unless its severity is critical.
func isAutoRecoverable(errType domain.ErrorType, severity domain.ErrorSeverity) bool {
	if severity == domain.SeverityCritical {
		return false
	}
	return autoRecoverableTypes[errType]
}

// patternStore tracks every ErrorPattern keyed by fingerprint; the
// contributing ErrorRecords are not kept here. Guarded by the owning
// Handler's mutex.
type patternStore struct {
	patterns map[string]*domain.ErrorPattern
}

func newPatternStore() *patternStore {
	return &patternStore{patterns: make(map[string]*domain.ErrorPattern)}
}

// record updates or creates the ErrorPattern for rec.Fingerprint, returning
// it. Must be called with the owning Handler's lock held.
func (s *patternStore) record(rec *domain.ErrorRecord) *domain.ErrorPattern {
	if pattern, ok := s.patterns[rec.Fingerprint]; ok {
		pattern.Frequency++
		pattern.LastOccurrence = rec.OccurredAt
		if !containsString(pattern.AffectedOperations, rec.Context.OperationName) {
			pattern.AffectedOperations = append(pattern.AffectedOperations, rec.Context.OperationName)
		}
		return pattern
	}

	pattern := &domain.ErrorPattern{
		PatternID:           rec.ErrorID + "-pattern",
		Fingerprint:         rec.Fingerprint,
		ErrorType:           rec.ErrorType,
		Source:              rec.Source,
		Frequency:           1,
		FirstOccurrence:     rec.OccurredAt,
		LastOccurrence:      rec.OccurredAt,
		AffectedOperations:  []string{rec.Context.OperationName},
		SuggestedActions:    suggestedActions(rec.ErrorType),
		EscalationThreshold: escalationThreshold(rec.Severity),
		AutoRecoveryEnabled: isAutoRecoverable(rec.ErrorType, rec.Severity),
	}
	s.patterns[rec.Fingerprint] = pattern
	return pattern
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
