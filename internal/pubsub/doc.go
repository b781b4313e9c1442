// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package pubsub implements the topic/subscription coordinator (C3): a
// topic registry, a pattern-matched subscription registry, and a capped
// per-topic publication history. Dispatch fan-out (BROADCAST, ROUND_ROBIN,
// PRIORITY, LOAD_BALANCED) is decided by each topic's type; delivery to
// each selected subscription runs through a Watermill consumer handler
// backed by an in-process GoChannel, with panic recovery and per-
// subscription retry/backoff layered on as router middleware.
package pubsub
