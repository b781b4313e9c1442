// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package eventbus

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// Handler is the typed callback a Subscription invokes for each matching
// event. A non-nil error counts as a handler failure for retry purposes.
type Handler func(ctx context.Context, evt domain.Event) error

// Subscription is a standing interest in an event-type pattern.
type Subscription struct {
	ID         string
	Pattern    string
	Scope      domain.Scope
	Priority   int // handler execution order, descending
	Subscriber string
	Filters    map[string]any
	Handler    Handler
	Async      bool // async handlers run inline; sync handlers run on the bounded pool
}

// eventState is the lifecycle status of an event tracked by GetStatus.
type eventState string

const (
	stateQueued     eventState = "QUEUED"
	stateProcessing eventState = "PROCESSING"
	stateCompleted  eventState = "COMPLETED"
	stateDeadLetter eventState = "DEAD_LETTER"
)

// EventRecord is the status snapshot returned by GetStatus.
type EventRecord struct {
	Event       domain.Event
	State       string
	LastError   string
	CompletedAt time.Time
}

var busLevels = []domain.Priority{
	domain.PriorityCritical,
	domain.PriorityHigh,
	domain.PriorityNormal,
	domain.PriorityLow,
}

// Bus is the single in-process event plane (spec §4.1): one priority
// queue per level, drained by independent worker tasks, dispatching to
// pattern- and scope-matched subscriptions.
type Bus struct {
	cfg config.EventBusConfig

	mu      sync.RWMutex
	subs    map[string]*Subscription
	records map[string]*EventRecord
	failed  map[string]domain.Event

	queues map[domain.Priority]*levelQueue
	sem    chan struct{} // bounds concurrent sync-handler execution

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Bus. Start must be called to begin draining queues.
func New(cfg config.EventBusConfig) *Bus {
	b := &Bus{
		cfg:     cfg,
		subs:    make(map[string]*Subscription),
		records: make(map[string]*EventRecord),
		failed:  make(map[string]domain.Event),
		queues:  make(map[domain.Priority]*levelQueue),
		sem:     make(chan struct{}, max(1, cfg.WorkerPoolSize)),
	}
	for _, level := range busLevels {
		b.queues[level] = newLevelQueue()
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Start launches one worker per priority level plus the maintenance loop.
// It returns immediately; workers run until ctx is canceled or Stop is
// called.
func (b *Bus) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, level := range busLevels {
		level := level
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.runWorker(ctx, level)
		}()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.runMaintenance(ctx)
	}()
}

// Stop cancels workers and waits for them to drain their current event.
func (b *Bus) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	for _, q := range b.queues {
		q.close()
	}
	b.wg.Wait()
}

// Emit enqueues a new event and returns its id.
func (b *Bus) Emit(evtType string, payload map[string]any, source string, scope domain.Scope, priority domain.Priority, opts ...EventOption) (string, error) {
	evt := domain.Event{
		ID:         uuid.NewString(),
		Type:       evtType,
		Payload:    payload,
		Source:     source,
		Scope:      scope,
		Priority:   priority,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: b.cfg.MaxRetries,
	}
	for _, opt := range opts {
		opt(&evt)
	}

	q, ok := b.queues[evt.Priority]
	if !ok {
		q = b.queues[domain.PriorityNormal]
	}

	b.mu.Lock()
	b.records[evt.ID] = &EventRecord{Event: evt, State: string(stateQueued)}
	b.mu.Unlock()

	q.push(&evt)
	metrics.EventBusEmitted.WithLabelValues(string(scope)).Inc()
	return evt.ID, nil
}

// EventOption mutates an Event before it is queued.
type EventOption func(*domain.Event)

// WithTenant sets the event's tenant id.
func WithTenant(tenantID string) EventOption {
	return func(e *domain.Event) { e.TenantID = tenantID }
}

// WithCorrelation sets the event's correlation id.
func WithCorrelation(id string) EventOption {
	return func(e *domain.Event) { e.CorrelationID = id }
}

// WithTags attaches tags to the event.
func WithTags(tags ...string) EventOption {
	return func(e *domain.Event) { e.Tags = tags }
}

// PublishToScope is Emit with the scope as the primary selection criterion,
// matching spec §4.1's publishToScope operation.
func (b *Bus) PublishToScope(evtType string, payload map[string]any, scope domain.Scope, priority domain.Priority, opts ...EventOption) (string, error) {
	return b.Emit(evtType, payload, "eventbus", scope, priority, opts...)
}

// Subscribe registers a pattern-matched handler and returns its
// subscription id.
func (b *Bus) Subscribe(pattern string, handler Handler, subscriber string, scope domain.Scope, priority int, filters map[string]any, async bool) string {
	sub := &Subscription{
		ID:         uuid.NewString(),
		Pattern:    pattern,
		Scope:      scope,
		Priority:   priority,
		Subscriber: subscriber,
		Filters:    filters,
		Handler:    handler,
		Async:      async,
	}
	b.mu.Lock()
	b.subs[sub.ID] = sub
	b.mu.Unlock()
	return sub.ID
}

// Unsubscribe removes a subscription, reporting whether it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	return true
}

// GetStatus returns the current record for an event id.
func (b *Bus) GetStatus(eventID string) (EventRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[eventID]
	if !ok {
		return EventRecord{}, false
	}
	return *rec, true
}

// ReplayFailed re-queues a dead-lettered event with its retry count reset.
func (b *Bus) ReplayFailed(eventID string) error {
	b.mu.Lock()
	evt, ok := b.failed[eventID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("eventbus: no failed event %s", eventID)
	}
	delete(b.failed, eventID)
	evt.RetryCount = 0
	b.records[evt.ID] = &EventRecord{Event: evt, State: string(stateQueued)}
	b.mu.Unlock()

	q, ok := b.queues[evt.Priority]
	if !ok {
		q = b.queues[domain.PriorityNormal]
	}
	q.push(&evt)
	return nil
}

func (b *Bus) runWorker(ctx context.Context, level domain.Priority) {
	q := b.queues[level]
	for {
		evt, ok := q.pop()
		if !ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		b.dispatch(ctx, evt)
	}
}

// dispatch runs every matching handler for evt, in descending
// handler-priority order, and applies the retry/dead-letter policy on
// failure.
func (b *Bus) dispatch(ctx context.Context, evt *domain.Event) {
	b.setState(evt.ID, stateProcessing, "")

	handlers := b.matchingHandlers(evt)
	var lastErr error
	for _, sub := range handlers {
		if err := b.invoke(ctx, sub, evt); err != nil {
			lastErr = err
			metrics.EventBusHandlerOutcome.WithLabelValues("failure").Inc()
			break
		}
		metrics.EventBusHandlerOutcome.WithLabelValues("success").Inc()
	}

	if lastErr == nil {
		b.setState(evt.ID, stateCompleted, "")
		return
	}

	evt.RetryCount++
	if evt.RetryCount <= evt.MaxRetries {
		q := b.queues[evt.Priority]
		q.pushFront(evt)
		b.setState(evt.ID, stateQueued, lastErr.Error())
		return
	}

	b.deadLetter(ctx, *evt, lastErr)
}

func (b *Bus) invoke(ctx context.Context, sub *Subscription, evt *domain.Event) error {
	if sub.Async {
		return sub.Handler(ctx, *evt)
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()
	return sub.Handler(ctx, *evt)
}

func (b *Bus) matchingHandlers(evt *domain.Event) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []*Subscription
	for _, sub := range b.subs {
		if !domain.MatchGlob(sub.Pattern, evt.Type) {
			continue
		}
		if sub.Scope != domain.ScopeGlobal && sub.Scope != evt.Scope {
			continue
		}
		matched = append(matched, sub)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Priority > matched[j].Priority })
	return matched
}

func (b *Bus) deadLetter(ctx context.Context, evt domain.Event, cause error) {
	b.mu.Lock()
	b.failed[evt.ID] = evt
	b.records[evt.ID] = &EventRecord{
		Event:       evt,
		State:       string(stateDeadLetter),
		LastError:   cause.Error(),
		CompletedAt: time.Now().UTC(),
	}
	b.mu.Unlock()

	logging.Warn().Str("event_id", evt.ID).Str("event_type", evt.Type).Err(cause).Msg("event exhausted retries, routed to dead letter")
	metrics.EventBusHandlerOutcome.WithLabelValues("dead_letter").Inc()

	_, _ = b.Emit("system.event.dead_letter", map[string]any{
		"original_event_id":   evt.ID,
		"original_event_type": evt.Type,
		"failure_reason":      cause.Error(),
		"retry_count":         evt.RetryCount,
	}, "eventbus", domain.ScopeGlobal, domain.PriorityHigh)
}

func (b *Bus) setState(eventID string, state eventState, lastErr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[eventID]
	if !ok {
		return
	}
	rec.State = string(state)
	rec.LastError = lastErr
	if state == stateCompleted {
		rec.CompletedAt = time.Now().UTC()
	}
}

func (b *Bus) runMaintenance(ctx context.Context) {
	tick := b.cfg.MaintenanceTick
	if tick <= 0 {
		tick = 60 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweepCompleted()
			b.reportHealth()
		}
	}
}

// sweepCompleted drops COMPLETED records older than the retention window.
func (b *Bus) sweepCompleted() {
	cutoff := time.Now().Add(-b.cfg.RetentionWindow)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, rec := range b.records {
		if rec.State == string(stateCompleted) && rec.CompletedAt.Before(cutoff) {
			delete(b.records, id)
		}
	}
}

func (b *Bus) reportHealth() {
	b.mu.RLock()
	handlerCount := len(b.subs)
	b.mu.RUnlock()

	sizes := make(map[string]int, len(busLevels))
	for _, level := range busLevels {
		n := b.queues[level].len()
		sizes[strconv.Itoa(int(level))] = n
		metrics.EventBusQueueDepth.WithLabelValues(priorityLabel(level)).Set(float64(n))
	}

	_, _ = b.Emit("system.event_bus.health", map[string]any{
		"queue_sizes":   sizes,
		"handler_count": handlerCount,
	}, "eventbus", domain.ScopeGlobal, domain.PriorityLow)
}

func priorityLabel(p domain.Priority) string {
	switch p {
	case domain.PriorityCritical:
		return "critical"
	case domain.PriorityHigh:
		return "high"
	case domain.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}
