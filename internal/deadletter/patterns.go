// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package deadletter

import (
	"sync"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

const patternCap = 100

// patternTracker keys failure patterns by (failure_reason, source_service)
// and keeps the most recent patternCap dead-letter ids for each, per
// spec.md §4.9.
type patternTracker struct {
	mu       sync.Mutex
	patterns map[string][]string
}

func newPatternTracker() *patternTracker {
	return &patternTracker{patterns: make(map[string][]string)}
}

func patternKey(reason domain.FailureReason, sourceService string) string {
	return string(reason) + ":" + sourceService
}

func (t *patternTracker) record(dl *domain.DeadLetterMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := patternKey(dl.Failure.Reason, dl.Failure.SourceService)
	ids := append(t.patterns[key], dl.ID)
	if len(ids) > patternCap {
		ids = ids[len(ids)-patternCap:]
	}
	t.patterns[key] = ids
}

// ids returns the tracked dead-letter ids for (reason, sourceService).
func (t *patternTracker) ids(reason domain.FailureReason, sourceService string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := patternKey(reason, sourceService)
	out := make([]string, len(t.patterns[key]))
	copy(out, t.patterns[key])
	return out
}
