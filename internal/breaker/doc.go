// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package breaker is the per-target Circuit Breaker (C7): a thin wrapper
// over github.com/sony/gobreaker/v2 that adds a rolling-window failure
// counter (rather than gobreaker's own since-last-clear counts), a
// distinct timeout counter, and shared-store state persistence so other
// replicas can see a breaker's last known state. A newly constructed
// breaker always starts CLOSED; it does not load the persisted state.
package breaker
