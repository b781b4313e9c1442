// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

func testCfg() config.PubSubConfig {
	return config.PubSubConfig{
		HistorySize:   1000,
		AckTimeout:    30 * time.Second,
		BackoffFactor: 2.0,
		MaxRetries:    3,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, func()) {
	t.Helper()
	c, err := New(testCfg())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	return c, func() {
		c.Stop()
		cancel()
	}
}

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	c, cleanup := newTestCoordinator(t)
	defer cleanup()

	if _, err := c.CreateTopic(domain.Topic{Name: "invoice.events", Type: domain.TopicBroadcast}); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	var got int32
	var wg sync.WaitGroup
	wg.Add(2)
	cb := func(pub domain.Publication) error {
		atomic.AddInt32(&got, 1)
		wg.Done()
		return nil
	}
	c.Subscribe("sub1", "invoice.*", cb, domain.SubscriptionPersistent, domain.DeliveryAtMostOnce, 0, nil, nil)
	c.Subscribe("sub2", "invoice.*", cb, domain.SubscriptionPersistent, domain.DeliveryAtMostOnce, 0, nil, nil)

	if _, err := c.Publish("invoice.events", map[string]any{"id": "INV1"}, "test", 5, domain.DeliveryAtMostOnce, nil, "", "", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all subscribers were delivered to")
	}
	if atomic.LoadInt32(&got) != 2 {
		t.Errorf("expected 2 deliveries, got %d", got)
	}
}

func TestTenantFilterExcludesNonMatching(t *testing.T) {
	c, cleanup := newTestCoordinator(t)
	defer cleanup()

	if _, err := c.CreateTopic(domain.Topic{Name: "t1", Type: domain.TopicBroadcast}); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	var seen int32
	done := make(chan struct{}, 2)
	cb := func(pub domain.Publication) error {
		atomic.AddInt32(&seen, 1)
		done <- struct{}{}
		return nil
	}
	c.Subscribe("sub1", "t1", cb, domain.SubscriptionPersistent, domain.DeliveryAtMostOnce, 0, map[string]any{"tenant_filter": "tenantA"}, nil)

	if _, err := c.Publish("t1", map[string]any{}, "test", 0, domain.DeliveryAtMostOnce, nil, "", "tenantB", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := c.Publish("t1", map[string]any{}, "test", 0, domain.DeliveryAtMostOnce, nil, "", "tenantA", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("matching-tenant publication was never delivered")
	}
	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&seen) != 1 {
		t.Errorf("expected exactly 1 delivery (tenantA only), got %d", seen)
	}
}

func TestRoundRobinAlternatesSubscribers(t *testing.T) {
	c, cleanup := newTestCoordinator(t)
	defer cleanup()

	if _, err := c.CreateTopic(domain.Topic{Name: "rr", Type: domain.TopicRoundRobin}); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	var mu sync.Mutex
	hits := map[string]int{}
	done := make(chan struct{}, 4)
	mk := func(name string) domain.SubscriptionCallback {
		return func(pub domain.Publication) error {
			mu.Lock()
			hits[name]++
			mu.Unlock()
			done <- struct{}{}
			return nil
		}
	}
	c.Subscribe("a", "rr", mk("a"), domain.SubscriptionPersistent, domain.DeliveryAtMostOnce, 0, nil, nil)
	c.Subscribe("b", "rr", mk("b"), domain.SubscriptionPersistent, domain.DeliveryAtMostOnce, 0, nil, nil)

	for i := 0; i < 4; i++ {
		if _, err := c.Publish("rr", map[string]any{"i": i}, "test", 0, domain.DeliveryAtMostOnce, nil, "", "", nil); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("round-robin delivery timed out")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if hits["a"] == 0 || hits["b"] == 0 {
		t.Errorf("expected both subscribers to receive round-robin traffic, got %+v", hits)
	}
}

func TestAckClearsPendingEntry(t *testing.T) {
	c, cleanup := newTestCoordinator(t)
	defer cleanup()

	if _, err := c.CreateTopic(domain.Topic{Name: "al1", Type: domain.TopicBroadcast}); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	delivered := make(chan domain.Publication, 1)
	subID := c.Subscribe("sub1", "al1", func(pub domain.Publication) error {
		delivered <- pub
		return nil
	}, domain.SubscriptionPersistent, domain.DeliveryAtLeastOnce, 0, nil, nil)

	pubID, err := c.Publish("al1", map[string]any{}, "test", 0, domain.DeliveryAtLeastOnce, nil, "", "", nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("at-least-once message never delivered")
	}

	if c.pendingLen() != 1 {
		t.Fatalf("expected one pending ack, got %d", c.pendingLen())
	}
	c.Ack(pubID, subID)
	if c.pendingLen() != 0 {
		t.Errorf("expected pending ack set to be empty after Ack, got %d", c.pendingLen())
	}
}
