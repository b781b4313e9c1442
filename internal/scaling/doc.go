// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package scaling is the Horizontal Scaling Coordinator (C6): it manages a
// pool of internal/redisrouter instances, collecting per-instance stats
// every 10s, evaluating instance health every 60s, and running a scaling
// decision every 30s under one of five policies (MANUAL, CPU_BASED,
// QUEUE_BASED, LATENCY_BASED, HYBRID). MANUAL skips the automatic decision;
// every other policy runs the same combined factor. Instances are supervised through internal/supervisor's
// router layer, so a crashed instance is restarted by suture independently
// of the coordinator's own scale-up/scale-down decisions.
package scaling
