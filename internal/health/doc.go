// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package health is the Async Health Checker (C8): one supervised loop per
// monitored service, each running a user-supplied idempotent check on a
// fixed interval with bounded retries, plus a 10-second aggregator that
// derives an overall cluster status and snapshots it to the shared store.
package health
