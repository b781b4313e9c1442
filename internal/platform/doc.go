// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package platform is the composition root for the routing fabric. It
// replaces ad-hoc global singletons with a single Build step that
// constructs C1-C11 in dependency order, wires each background loop onto
// the shared SupervisorTree's bus/router/reliability/background layers,
// and returns a Platform the entry point can Start and hand its HTTP
// handler to.
package platform
