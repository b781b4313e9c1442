// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package deadletter is the Dead Letter Handler (C9): classifies failed
// messages, runs poison detectors, scores priority, tracks failure
// patterns, and proposes (and optionally auto-attempts) recovery plans.
package deadletter
