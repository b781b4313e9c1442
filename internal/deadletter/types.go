// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// Detector votes on whether a dead letter message is poison. A detector
// is never trusted alone: handleFailedMessage runs every registered
// detector and marks poison if any one fires.
type Detector func(dl *domain.DeadLetterMessage, recent []*domain.DeadLetterMessage) bool

// Analyzer classifies a failure and proposes an analysis result, keyed
// by FailureReason.
type Analyzer func(dl *domain.DeadLetterMessage) map[string]any

// RecoveryHandler attempts to execute a single RecoveryAction against a
// dead letter message, returning whether the attempt succeeded.
type RecoveryHandler func(dl *domain.DeadLetterMessage) bool

// Stats is the snapshot returned by getStats().
type Stats struct {
	TotalMessages     int64
	PoisonMessages    int64
	RecoveredMessages int64
	DiscardedMessages int64
	ByReason          map[domain.FailureReason]int64
	BySource          map[string]int64
}

// ListFilter narrows listDeadLetters(); zero-value fields are unfiltered.
type ListFilter struct {
	Reason      domain.FailureReason
	SourceQueue string
	PoisonOnly  bool
	Since       time.Time
}
