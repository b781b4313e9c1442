// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package supervisor provides process supervision for the routing fabric
// using suture v4.
//
// The supervisor tree isolates failures across four layers: the event bus
// workers, the router/scaling layer, the reliability layer
// (health checker, dead-letter handler), and a background layer for
// ancillary loops such as the pub-sub retry processor. A crash confined to
// one layer does not take down the others.
package supervisor
