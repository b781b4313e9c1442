// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package apiversion implements the version coordinator (C11): the HTTP
// boundary that detects a request's API version, validates role access
// against the version's compatibility matrix and per-role rate limits,
// injects version headers on every response, and hands the resolved
// (role, operation) tuple to the message router. It owns no routing
// logic of its own.
package apiversion
