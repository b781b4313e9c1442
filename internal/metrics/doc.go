// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

/*
Package metrics provides Prometheus metrics collection and export for the
routing fabric.

# Overview

The package instruments every component of the reliability substrate:

  - Event bus: queue depth per priority, handler dispatch outcomes
  - Queue manager: per-queue depth, ack/nack counts, dead-letter transitions
  - Pub-sub coordinator: publish/delivery counts, pending-ack set size
  - Message router: deliveries per strategy, rule-match counts, endpoints
  - Scaling coordinator: instance count, scaling decisions
  - Circuit breaker: state per name, failures, timeouts
  - Health checker: per-service status, check duration
  - Dead-letter handler: entries by reason, poison detections, recoveries

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format.

# See Also

  - github.com/prometheus/client_golang/prometheus/promauto: metric registration
  - internal/apiversion: HTTP boundary that serves /metrics
*/
package metrics
