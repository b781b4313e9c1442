// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package redisrouter is the shared-state replica of internal/router (C5):
// the same Backend contract, router.Router engine, and delivery strategies,
// but the endpoint and rule tables are mirrored to Redis hashes under a
// configurable prefix so multiple router replicas observe a consistent view
// of endpoints and rules. Round-robin counters are kept per replica in the
// Router and are not written to the round_robin_state key. Writes are
// write-through (hash write then local mutation); reads are served from a
// local 60s read-through cache.
//
// A ServiceEndpoint.Callback is an in-process closure and cannot cross a
// process boundary, so it is never part of the Redis wire record — replicas
// always deliver to endpoints they did not register in-process via the
// event-bus fallback path in router.deliverTo, scoped by the endpoint's
// role rather than a shared function value.
package redisrouter
