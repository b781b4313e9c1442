// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package domain

import (
	"path/filepath"
	"strings"
)

// MatchGlob reports whether text matches a shell-style glob pattern
// (`*`/`?`), mirroring the source system's use of Python's fnmatch against
// service names.
func MatchGlob(pattern, text string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	ok, err := filepath.Match(pattern, text)
	if err != nil {
		return false
	}
	return ok
}

// MatchDotted matches a dotted hierarchical pattern against a dotted type
// string, e.g. event types (`system.event.dead_letter`) or pub-sub topic
// names. `*` matches exactly one segment; `?` matches within a segment like
// a glob. Equal segment count is required: `a.*.c` matches `a.b.c` and
// `a.xyz.c` but not `a.b.d.c`, `a.c`, or `x.b.c` (spec.md §8 property 7).
func MatchDotted(pattern, text string) bool {
	if pattern == text {
		return true
	}
	patternSegs := strings.Split(pattern, ".")
	textSegs := strings.Split(text, ".")
	if len(patternSegs) != len(textSegs) {
		return false
	}
	for i, seg := range patternSegs {
		if !MatchGlob(seg, textSegs[i]) {
			return false
		}
	}
	return true
}
