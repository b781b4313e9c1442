// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCircuitStateValue(t *testing.T) {
	cases := map[string]float64{
		"CLOSED":    0,
		"HALF_OPEN": 1,
		"OPEN":      2,
	}
	for state, want := range cases {
		if got := CircuitStateValue(state); got != want {
			t.Errorf("CircuitStateValue(%q) = %v, want %v", state, got, want)
		}
	}
}

func TestServiceHealthValue(t *testing.T) {
	cases := map[string]float64{
		"HEALTHY":   0,
		"DEGRADED":  1,
		"UNHEALTHY": 2,
		"UNKNOWN":   3,
	}
	for status, want := range cases {
		if got := ServiceHealthValue(status); got != want {
			t.Errorf("ServiceHealthValue(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestQueueDepthGaugeRecordsValue(t *testing.T) {
	QueueDepth.WithLabelValues("invoices", "QUEUED").Set(3)
	got := testutil.ToFloat64(QueueDepth.WithLabelValues("invoices", "QUEUED"))
	if got != 3 {
		t.Errorf("QueueDepth = %v, want 3", got)
	}
}

func TestDeadLetterReceivedCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(DeadLetterReceived.WithLabelValues("TIMEOUT"))
	DeadLetterReceived.WithLabelValues("TIMEOUT").Inc()
	after := testutil.ToFloat64(DeadLetterReceived.WithLabelValues("TIMEOUT"))
	if after != before+1 {
		t.Errorf("DeadLetterReceived did not increment: before=%v after=%v", before, after)
	}
}
