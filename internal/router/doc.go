// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package router implements the central role-based message router (C4):
// service/endpoint registration, routing-rule matching, and the five
// delivery strategies (BROADCAST, ROUND_ROBIN, PRIORITY, LOAD_BALANCED,
// FAILOVER). The endpoint/rule store is abstracted behind a Backend
// capability so the same Router drives both the in-memory default and,
// via internal/redisrouter, a shared-store-backed replica (C5) — composition
// in place of the source system's subclassing.
package router
