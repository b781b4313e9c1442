// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package errorcoord implements the error-coordination facade (C10): a
// thin orchestrator above the rest of the routing fabric that fingerprints
// reported errors into patterns, dispatches built-in per-type handlers,
// and emits events for the circuit breaker and dead-letter handler to act
// on. It owns no escalation or incident workflow of its own.
package errorcoord
