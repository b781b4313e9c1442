// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package queue implements the collection of named message queues (C2):
// PRIORITY (binary heap), FIFO, LIFO (stack discipline), DELAYED (ready
// promotion by scheduled time), and BATCH (grouped flush). Each queue
// applies the shared retry/backoff and dead-letter policy on nack, and can
// optionally persist its QUEUED/RETRY entries to JSON between restarts.
package queue
