// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package eventbus implements the single in-process event plane (C1): one
// priority queue per level, drained by independent workers, dispatching to
// subscribers matched by pattern and scope. Handler failures retry with a
// bounded count before the event is emitted as a dead letter.
package eventbus
