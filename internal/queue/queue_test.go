// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

func TestPriorityQueueOrdering(t *testing.T) {
	q := New("pq", Options{Type: TypePriority, MaxWorkers: 1, RetryDelays: []float64{1, 5}})

	lowID, _ := q.Enqueue(map[string]any{"n": "low"}, domain.PriorityLow, time.Time{}, nil, "", "", nil, nil)
	highID, _ := q.Enqueue(map[string]any{"n": "high"}, domain.PriorityHigh, time.Time{}, nil, "", "", nil, nil)
	_, _ = lowID, highID

	msg, ok := q.Dequeue("c1", time.Second)
	if !ok {
		t.Fatal("expected a ready message")
	}
	if msg.ID != highID {
		t.Errorf("expected high priority message first, got %v", msg.Payload)
	}
}

func TestFIFOOrdering(t *testing.T) {
	q := New("fifo", Options{Type: TypeFIFO, MaxWorkers: 1})
	firstID, _ := q.Enqueue(map[string]any{"n": 1}, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil)
	_, _ = q.Enqueue(map[string]any{"n": 2}, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil)

	msg, ok := q.Dequeue("c1", time.Second)
	if !ok || msg.ID != firstID {
		t.Fatal("expected FIFO to return the first-enqueued message")
	}
}

func TestLIFOOrdering(t *testing.T) {
	q := New("lifo", Options{Type: TypeLIFO, MaxWorkers: 1})
	_, _ = q.Enqueue(map[string]any{"n": 1}, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil)
	secondID, _ := q.Enqueue(map[string]any{"n": 2}, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil)

	msg, ok := q.Dequeue("c1", time.Second)
	if !ok || msg.ID != secondID {
		t.Fatal("expected LIFO to return the last-enqueued message")
	}
}

func TestDelayedQueueNotReadyUntilScheduled(t *testing.T) {
	q := New("delayed", Options{Type: TypeDelayed, MaxWorkers: 1})
	_, _ = q.Enqueue(map[string]any{"n": "later"}, domain.PriorityNormal, time.Now().Add(200*time.Millisecond), nil, "", "", nil, nil)

	if _, ok := q.Dequeue("c1", 50*time.Millisecond); ok {
		t.Fatal("message became ready before its scheduled time")
	}

	msg, ok := q.Dequeue("c1", time.Second)
	if !ok {
		t.Fatal("message never became ready")
	}
	if msg.Payload["n"] != "later" {
		t.Errorf("unexpected message: %+v", msg.Payload)
	}
}

func TestNackRetrySchedulesBackoffThenDeadLetters(t *testing.T) {
	q := New("retry", Options{Type: TypeFIFO, MaxWorkers: 1, RetryDelays: []float64{0.05}})
	id, _ := q.Enqueue(map[string]any{"n": "x"}, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil)

	msg, ok := q.Dequeue("c1", time.Second)
	if !ok || msg.ID != id {
		t.Fatal("expected to dequeue the enqueued message")
	}
	if err := q.Nack(id, "boom"); err != nil {
		t.Fatalf("Nack: %v", err)
	}

	// Not yet promoted: the backoff delay hasn't elapsed.
	if _, ok := q.Dequeue("c1", 10*time.Millisecond); ok {
		t.Fatal("retried message became ready before its backoff delay")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		q.promoteReadyRetries(time.Now())
		if msg, ok := q.Dequeue("c1", 50*time.Millisecond); ok {
			if msg.ID != id {
				t.Fatalf("unexpected message promoted: %s", msg.ID)
			}
			if err := q.Nack(id, "boom again"); err != nil {
				t.Fatalf("Nack: %v", err)
			}
			break
		}
	}

	dl := q.DeadLettered()
	if len(dl) != 1 || dl[0].ID != id {
		t.Fatalf("expected message to be dead-lettered after exhausting retries, got %+v", dl)
	}
}

func TestQueueFullReturnsErrQueueFull(t *testing.T) {
	q := New("bounded", Options{Type: TypeFIFO, MaxWorkers: 1, MaxSize: 1})
	if _, err := q.Enqueue(nil, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := q.Enqueue(nil, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestManagerBatchFlushBySize(t *testing.T) {
	m := NewManager(testQueueConfig())
	q, err := m.CreateQueue("batch1", TypeBatch, StrategyWorkStealing, 1, 0)
	if err != nil {
		t.Fatalf("CreateQueue: %v", err)
	}
	q.opts.BatchSize = 2
	q.opts.BatchTimeout = 20 * time.Millisecond

	flushed := make(chan int, 4)
	if err := m.RegisterBatchConsumer("batch1", func(_ context.Context, batch []*domain.QueuedMessage) ([]bool, error) {
		flushed <- len(batch)
		oks := make([]bool, len(batch))
		for i := range oks {
			oks[i] = true
		}
		return oks, nil
	}); err != nil {
		t.Fatalf("RegisterBatchConsumer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	for i := 0; i < 2; i++ {
		if _, err := m.Enqueue("batch1", map[string]any{"i": i}, domain.PriorityNormal, time.Time{}, nil, "", "", nil, nil); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	select {
	case n := <-flushed:
		if n != 2 {
			t.Errorf("expected batch of 2, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("batch never flushed")
	}
}

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		MaxWorkersPerQueue: 2,
		RetryDelays:        []float64{0.05, 0.1},
		BatchSize:          50,
		BatchTimeout:       2 * time.Second,
		MaintenanceTick:    50 * time.Millisecond,
	}
}
