// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// ErrQueueExists is returned by CreateQueue for a name already registered.
var ErrQueueExists = fmt.Errorf("queue: already exists")

// ErrNoSuchQueue is returned when a named queue is not registered.
var ErrNoSuchQueue = fmt.Errorf("queue: no such queue")

// Manager owns the set of named queues and their worker goroutines, and
// drives the shared maintenance loop (retry promotion and optional
// persistence). Expired messages are dropped by workers at dequeue time.
type Manager struct {
	cfg config.QueueConfig

	mu     sync.RWMutex
	queues map[string]*Queue

	store  *store
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager constructs a queue manager. If cfg.PersistenceEnabled, queued
// and retry-scheduled messages are loaded from cfg.PersistenceDir when
// CreateQueue creates each queue and written back on each maintenance tick.
func NewManager(cfg config.QueueConfig) *Manager {
	m := &Manager{
		cfg:    cfg,
		queues: make(map[string]*Queue),
	}
	if cfg.PersistenceEnabled {
		m.store = newStore(cfg.PersistenceDir)
	}
	return m
}

// CreateQueue registers a new named queue. maxWorkers/maxSize of 0 fall
// back to the manager's configured defaults.
func (m *Manager) CreateQueue(name string, qtype Type, strategy ConsumerStrategy, maxWorkers, maxSize int) (*Queue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queues[name]; exists {
		return nil, ErrQueueExists
	}

	if maxWorkers <= 0 {
		maxWorkers = m.cfg.MaxWorkersPerQueue
	}
	if maxSize <= 0 {
		maxSize = m.cfg.MaxSize
	}
	q := New(name, Options{
		Type:             qtype,
		MaxWorkers:       maxWorkers,
		MaxSize:          maxSize,
		ConsumerStrategy: strategy,
		BatchSize:        m.cfg.BatchSize,
		BatchTimeout:     m.cfg.BatchTimeout,
		RetryDelays:      m.cfg.RetryDelays,
	})

	if m.store != nil {
		if restored, err := m.store.load(name); err == nil {
			for _, msg := range restored {
				q.insert(msg)
			}
		} else {
			logging.Warn().Str("queue", name).Err(err).Msg("queue persistence load failed")
		}
	}

	m.queues[name] = q
	return q, nil
}

// Queue returns a previously created named queue.
func (m *Manager) Queue(name string) (*Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[name]
	if !ok {
		return nil, ErrNoSuchQueue
	}
	return q, nil
}

// Enqueue is a convenience wrapper resolving the named queue first.
func (m *Manager) Enqueue(queueName string, payload map[string]any, priority domain.Priority, scheduledTime time.Time, expiry *time.Time, correlation, tenant string, tags []string, metadata map[string]any) (string, error) {
	q, err := m.Queue(queueName)
	if err != nil {
		return "", err
	}
	return q.Enqueue(payload, priority, scheduledTime, expiry, correlation, tenant, tags, metadata)
}

// Ack resolves the named queue then acknowledges the message.
func (m *Manager) Ack(queueName, messageID string, result map[string]any) error {
	q, err := m.Queue(queueName)
	if err != nil {
		return err
	}
	return q.Ack(messageID, result)
}

// Nack resolves the named queue then negatively acknowledges the message.
func (m *Manager) Nack(queueName, messageID, cause string) error {
	q, err := m.Queue(queueName)
	if err != nil {
		return err
	}
	return q.Nack(messageID, cause)
}

// RegisterConsumer attaches a consumer to a named queue. It starts no
// goroutines; the queue's workers are started by Start.
func (m *Manager) RegisterConsumer(queueName, consumerID string, callback ConsumerFunc) error {
	q, err := m.Queue(queueName)
	if err != nil {
		return err
	}
	q.RegisterConsumer(consumerID, callback)
	return nil
}

// RegisterBatchConsumer attaches the single batch consumer for a BATCH
// queue.
func (m *Manager) RegisterBatchConsumer(queueName string, callback BatchConsumerFunc) error {
	q, err := m.Queue(queueName)
	if err != nil {
		return err
	}
	q.mu.Lock()
	q.batchConsumer = callback
	q.mu.Unlock()
	return nil
}

// Pause/Resume/Stop a named queue.
func (m *Manager) Pause(queueName string) error {
	q, err := m.Queue(queueName)
	if err != nil {
		return err
	}
	q.Pause()
	return nil
}

func (m *Manager) Resume(queueName string) error {
	q, err := m.Queue(queueName)
	if err != nil {
		return err
	}
	q.Resume()
	return nil
}

// Start launches, per queue, MaxWorkers worker goroutines (one batch flush
// loop for a BATCH queue) plus the shared maintenance loop (retry
// promotion and persistence snapshot).
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.mu.RLock()
	for _, q := range m.queues {
		m.startWorkers(runCtx, q)
	}
	m.mu.RUnlock()

	m.wg.Add(1)
	go m.maintenanceLoop(runCtx)
}

// startWorkers spawns a queue's worker pool. For BATCH queues a single
// flush-driving goroutine is started instead of per-message workers.
func (m *Manager) startWorkers(ctx context.Context, q *Queue) {
	if q.opts.Type == TypeBatch {
		m.wg.Add(1)
		go m.runBatchLoop(ctx, q)
		return
	}
	for i := 0; i < q.opts.MaxWorkers; i++ {
		m.wg.Add(1)
		go m.runWorker(ctx, q)
	}
}

// runWorker repeatedly dequeues and dispatches to the queue's selected
// consumer until ctx is done.
func (m *Manager) runWorker(ctx context.Context, q *Queue) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, ok := q.Dequeue("worker", 500*time.Millisecond)
		if !ok {
			continue
		}
		if checkExpiry(msg) {
			q.mu.Lock()
			delete(q.inFlight, msg.ID)
			q.mu.Unlock()
			metrics.QueueDepth.WithLabelValues(q.Name, string(domain.StatusExpired)).Inc()
			continue
		}

		c := q.selectConsumer()
		if c == nil {
			// No consumer registered yet; park the message back for a
			// later worker pass.
			_ = q.Nack(msg.ID, "no consumer registered")
			continue
		}

		c.inFlight++
		err := c.callback(ctx, msg)
		c.inFlight--
		if err != nil {
			_ = q.Nack(msg.ID, err.Error())
			continue
		}
		_ = q.Ack(msg.ID, nil)
	}
}

// runBatchLoop accumulates ready BATCH messages and flushes them to the
// registered batch consumer on size or timeout triggers.
func (m *Manager) runBatchLoop(ctx context.Context, q *Queue) {
	defer m.wg.Done()
	batchSize := q.opts.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	timeout := q.opts.BatchTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	ticker := time.NewTicker(timeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.flushBatch(ctx, q, batchSize)
		case <-q.flushNotify:
			// Buffer crossed batchSize between ticks; flush immediately
			// instead of waiting out the rest of the timeout window, and
			// keep draining in case the burst filled several multiples of
			// batchSize at once.
			for q.bufLenAtLeast(batchSize) {
				m.flushBatch(ctx, q, batchSize)
			}
		}
	}
}

func (m *Manager) flushBatch(ctx context.Context, q *Queue, batchSize int) {
	q.mu.Lock()
	if len(q.batchBuf) == 0 {
		q.mu.Unlock()
		return
	}
	n := len(q.batchBuf)
	if n > batchSize {
		n = batchSize
	}
	batch := q.batchBuf[:n]
	q.batchBuf = q.batchBuf[n:]
	consumer := q.batchConsumer
	q.mu.Unlock()

	if consumer == nil {
		// Nothing registered yet; put the batch back.
		q.mu.Lock()
		q.batchBuf = append(batch, q.batchBuf...)
		q.mu.Unlock()
		return
	}

	results, err := consumer(ctx, batch)
	if err != nil {
		logging.Err(err).Str("queue", q.Name).Int("size", n).Msg("batch consumer failed")
	}
	for i, msg := range batch {
		ok := err == nil
		if len(results) == 1 {
			ok = results[0]
		} else if i < len(results) {
			ok = results[i]
		}
		q.mu.Lock()
		q.count--
		q.mu.Unlock()
		if ok {
			metrics.QueueAcks.WithLabelValues(q.Name).Inc()
		} else {
			msg.RetryCount++
			q.insert(msg)
		}
	}
}

// maintenanceLoop drives retry promotion, the depth gauge, and persistence
// across all registered queues on the configured tick.
func (m *Manager) maintenanceLoop(ctx context.Context) {
	defer m.wg.Done()
	tick := m.cfg.MaintenanceTick
	if tick <= 0 {
		tick = 30 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runMaintenance()
		}
	}
}

func (m *Manager) runMaintenance() {
	now := time.Now()
	m.mu.RLock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	for _, q := range queues {
		q.promoteReadyRetries(now)
		metrics.QueueDepth.WithLabelValues(q.Name, string(domain.StatusQueued)).Set(float64(q.Len()))

		if m.store != nil {
			if err := m.store.save(q.Name, q.snapshot()); err != nil {
				logging.Warn().Str("queue", q.Name).Err(err).Msg("queue persistence save failed")
			}
		}
	}
}

// Stop halts all worker goroutines and the maintenance loop, blocking
// until they exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.RLock()
	for _, q := range m.queues {
		q.Stop()
	}
	m.mu.RUnlock()
	m.wg.Wait()
}
