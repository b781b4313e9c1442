// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/cache"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// ErrQueueFull is returned by Enqueue when the queue is at MaxSize. Per
// spec §5, an enqueue on a full bounded queue is treated as a transient
// routing failure by callers, not a fatal error.
var ErrQueueFull = fmt.Errorf("queue: at max size")

// ErrUnknownMessage is returned by Ack/Nack for an id not currently in
// flight.
var ErrUnknownMessage = fmt.Errorf("queue: unknown or already resolved message")

// Queue is a single named message queue with the backing structure
// selected by its Type.
type Queue struct {
	Name string
	opts Options

	mu         sync.Mutex
	cond       *sync.Cond
	heap       *cache.PriorityHeap[*domain.QueuedMessage] // PRIORITY, DELAYED
	fifo       []*domain.QueuedMessage                    // FIFO, LIFO
	batchBuf      []*domain.QueuedMessage
	batchConsumer BatchConsumerFunc
	// flushNotify wakes runBatchLoop as soon as batchBuf crosses BatchSize,
	// independent of the flush-timeout ticker (spec §6: "len(buffer) >=
	// batch_size OR time since last flush >= batch_timeout").
	flushNotify chan struct{}
	lastFlush  time.Time
	retryHeap  *cache.PriorityHeap[*domain.QueuedMessage] // scheduled retries/backoff, any type
	inFlight   map[string]*domain.QueuedMessage
	deadLetter []*domain.QueuedMessage
	consumers  map[string]*consumer
	consumerSeq []string
	rrIndex    int
	paused     bool
	stopped    bool
	count      int
}

// New constructs a named queue with the given backing type and options.
func New(name string, opts Options) *Queue {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.ConsumerStrategy == "" {
		opts.ConsumerStrategy = StrategyWorkStealing
	}
	q := &Queue{
		Name:        name,
		opts:        opts,
		heap:        cache.NewPriorityHeap[*domain.QueuedMessage](),
		retryHeap:   cache.NewPriorityHeap[*domain.QueuedMessage](),
		inFlight:    make(map[string]*domain.QueuedMessage),
		consumers:   make(map[string]*consumer),
		flushNotify: make(chan struct{}, 1),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue admits a new message and returns its id.
func (q *Queue) Enqueue(payload map[string]any, priority domain.Priority, scheduledTime time.Time, expiry *time.Time, correlation, tenant string, tags []string, metadata map[string]any) (string, error) {
	q.mu.Lock()
	if q.opts.MaxSize > 0 && q.count >= q.opts.MaxSize {
		q.mu.Unlock()
		return "", ErrQueueFull
	}
	q.mu.Unlock()

	if scheduledTime.IsZero() {
		scheduledTime = time.Now().UTC()
	}

	msg := &domain.QueuedMessage{
		RoutedMessage: domain.RoutedMessage{
			Event: domain.Event{
				ID:            uuid.NewString(),
				Payload:       payload,
				Priority:      priority,
				CreatedAt:     time.Now().UTC(),
				CorrelationID: correlation,
				TenantID:      tenant,
				Tags:          tags,
				Metadata:      metadata,
			},
		},
		QueueName:     q.Name,
		ScheduledTime: scheduledTime,
		ExpiryTime:    expiry,
		Status:        domain.StatusQueued,
	}

	q.insert(msg)
	metrics.QueueDepth.WithLabelValues(q.Name, string(domain.StatusQueued)).Inc()
	return msg.ID, nil
}

// insert places msg into the type-appropriate backing structure. Callers
// must not hold q.mu.
func (q *Queue) insert(msg *domain.QueuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.count++

	switch q.opts.Type {
	case TypePriority:
		q.heap.Push(msg.ID, msg, int(msg.Priority), msg.ScheduledTime)
	case TypeDelayed:
		q.heap.Push(msg.ID, msg, 0, msg.ScheduledTime)
	case TypeLIFO, TypeFIFO:
		q.fifo = append(q.fifo, msg)
	case TypeBatch:
		q.batchBuf = append(q.batchBuf, msg)
		if len(q.batchBuf) >= q.batchSizeLocked() {
			select {
			case q.flushNotify <- struct{}{}:
			default:
			}
		}
	}
	q.cond.Signal()
}

// batchSizeLocked returns the effective BATCH flush threshold, applying
// the same default as runBatchLoop. Caller holds q.mu.
func (q *Queue) batchSizeLocked() int {
	if q.opts.BatchSize > 0 {
		return q.opts.BatchSize
	}
	return 50
}

// bufLenAtLeast reports whether the BATCH buffer still holds at least n
// messages, used by runBatchLoop to drain a burst that filled several
// multiples of batchSize at once.
func (q *Queue) bufLenAtLeast(n int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.batchBuf) >= n
}

// Dequeue removes the next ready message for processing, blocking up to
// timeout. BATCH queues do not support Dequeue; messages are delivered to
// the registered batch consumer by the flush loop instead.
func (q *Queue) Dequeue(consumerID string, timeout time.Duration) (*domain.QueuedMessage, bool) {
	if q.opts.Type == TypeBatch {
		return nil, false
	}

	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stopped {
			return nil, false
		}
		if !q.paused {
			if msg, ok := q.popLocked(); ok {
				msg.Status = domain.StatusProcessing
				msg.ConsumerID = consumerID
				q.inFlight[msg.ID] = msg
				return msg, true
			}
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		q.waitWithTimeout(remaining)
	}
}

// popLocked pops the next ready message without blocking. Caller holds q.mu.
func (q *Queue) popLocked() (*domain.QueuedMessage, bool) {
	switch q.opts.Type {
	case TypePriority:
		entry := q.heap.Pop()
		if entry == nil {
			return nil, false
		}
		q.count--
		return entry.Value, true
	case TypeDelayed:
		top := q.heap.Peek()
		if top == nil || top.ScheduledFor.After(time.Now()) {
			return nil, false
		}
		entry := q.heap.Pop()
		q.count--
		return entry.Value, true
	case TypeFIFO:
		if len(q.fifo) == 0 {
			return nil, false
		}
		msg := q.fifo[0]
		q.fifo = q.fifo[1:]
		q.count--
		return msg, true
	case TypeLIFO:
		n := len(q.fifo)
		if n == 0 {
			return nil, false
		}
		msg := q.fifo[n-1]
		q.fifo = q.fifo[:n-1]
		q.count--
		return msg, true
	}
	return nil, false
}

// waitWithTimeout waits on q.cond for at most d, re-acquiring q.mu before
// returning (sync.Cond has no native timed wait).
func (q *Queue) waitWithTimeout(d time.Duration) {
	woke := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()
	go func() { <-woke }()
	q.cond.Wait()
	close(woke)
}

// Ack completes a processing message.
func (q *Queue) Ack(messageID string, result map[string]any) error {
	q.mu.Lock()
	msg, ok := q.inFlight[messageID]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownMessage
	}
	delete(q.inFlight, messageID)
	msg.Status = domain.StatusCompleted
	q.mu.Unlock()

	metrics.QueueAcks.WithLabelValues(q.Name).Inc()
	metrics.QueueDepth.WithLabelValues(q.Name, string(domain.StatusQueued)).Dec()
	return nil
}

// Nack fails a processing message: it is either rescheduled with
// exponential backoff or, past the retry budget, moved to DEAD_LETTER.
func (q *Queue) Nack(messageID string, cause string) error {
	q.mu.Lock()
	msg, ok := q.inFlight[messageID]
	if !ok {
		q.mu.Unlock()
		return ErrUnknownMessage
	}
	delete(q.inFlight, messageID)
	msg.RetryCount++
	delays := q.opts.RetryDelays
	q.mu.Unlock()

	metrics.QueueNacks.WithLabelValues(q.Name).Inc()

	// Past the retry budget: the delay schedule is exhausted.
	if len(delays) == 0 || msg.RetryCount > len(delays) {
		q.mu.Lock()
		msg.Status = domain.StatusDeadLetter
		q.deadLetter = append(q.deadLetter, msg)
		q.mu.Unlock()
		metrics.QueueDeadLettered.WithLabelValues(q.Name).Inc()
		return nil
	}

	delayIdx := msg.RetryCount - 1
	if delayIdx > len(delays)-1 {
		delayIdx = len(delays) - 1
	}
	delay := time.Duration(delays[delayIdx] * float64(time.Second))
	msg.Status = domain.StatusRetry
	msg.ScheduledTime = time.Now().Add(delay)

	q.mu.Lock()
	q.retryHeap.Push(msg.ID, msg, 0, msg.ScheduledTime)
	q.mu.Unlock()
	return nil
}

// DeadLettered returns and clears the queue's accumulated dead-letter
// messages, handing them off to the dead-letter handler.
func (q *Queue) DeadLettered() []*domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.deadLetter
	q.deadLetter = nil
	return out
}

// RegisterConsumer attaches a named consumer callback to the queue.
func (q *Queue) RegisterConsumer(id string, callback ConsumerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.consumers[id]; !exists {
		q.consumerSeq = append(q.consumerSeq, id)
	}
	q.consumers[id] = &consumer{id: id, callback: callback}
}

// Pause stops new dequeues from being handed out until Resume is called.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Resume clears a paused state.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Stop marks the queue stopped; blocked Dequeue calls return immediately.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Len returns the number of resident messages across ready and in-flight
// state (excludes completed/dead-lettered).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count + len(q.inFlight)
}

// promoteReadyRetries moves retryHeap entries whose scheduled_time has
// arrived back into the main backing structure. Called by the manager's
// maintenance loop.
func (q *Queue) promoteReadyRetries(now time.Time) {
	for {
		q.mu.Lock()
		top := q.retryHeap.Peek()
		if top == nil || top.ScheduledFor.After(now) {
			q.mu.Unlock()
			return
		}
		entry := q.retryHeap.Pop()
		q.mu.Unlock()
		q.insert(entry.Value)
	}
}

// selectConsumer picks the next consumer per the queue's ConsumerStrategy.
// Caller holds no lock; safe for concurrent workers.
func (q *Queue) selectConsumer() *consumer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.consumerSeq) == 0 {
		return nil
	}

	switch q.opts.ConsumerStrategy {
	case StrategySingleConsumer:
		return q.consumers[q.consumerSeq[0]]
	case StrategyRoundRobin:
		id := q.consumerSeq[q.rrIndex%len(q.consumerSeq)]
		q.rrIndex++
		return q.consumers[id]
	case StrategyLoadBalanced:
		var best *consumer
		for _, id := range q.consumerSeq {
			c := q.consumers[id]
			if best == nil || c.inFlight < best.inFlight {
				best = c
			}
		}
		return best
	default: // WORK_STEALING: any idle worker takes the next message itself
		id := q.consumerSeq[q.rrIndex%len(q.consumerSeq)]
		q.rrIndex++
		return q.consumers[id]
	}
}

// snapshot returns every message currently resident in the queue (ready,
// retry-scheduled, and in-flight), for persistence between restarts.
// In-flight messages are snapshotted as QUEUED so a restart reprocesses
// them rather than losing them mid-flight.
func (q *Queue) snapshot() []*domain.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*domain.QueuedMessage, 0, q.count+len(q.inFlight))
	switch q.opts.Type {
	case TypePriority, TypeDelayed:
		for _, e := range q.heap.All() {
			out = append(out, e.Value)
		}
	case TypeFIFO, TypeLIFO:
		out = append(out, q.fifo...)
	case TypeBatch:
		out = append(out, q.batchBuf...)
	}
	for _, e := range q.retryHeap.All() {
		out = append(out, e.Value)
	}
	for _, msg := range q.inFlight {
		cp := *msg
		cp.Status = domain.StatusQueued
		out = append(out, &cp)
	}
	return out
}

// checkExpiry marks msg EXPIRED if its expiry has passed. Returns true if
// the message was expired and should be dropped from rotation.
func checkExpiry(msg *domain.QueuedMessage) bool {
	if msg.ExpiryTime == nil {
		return false
	}
	if !msg.ExpiryTime.After(time.Now()) {
		msg.Status = domain.StatusExpired
		return true
	}
	return false
}
