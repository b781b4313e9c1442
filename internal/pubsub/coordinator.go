// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/config"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/logging"
	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/metrics"
)

// ErrTopicExists is returned by CreateTopic for a name already registered.
var ErrTopicExists = fmt.Errorf("pubsub: topic already exists")

// ErrNoSuchTopic is returned when a named topic is not registered.
var ErrNoSuchTopic = fmt.Errorf("pubsub: no such topic")

// ErrTopicInUse is returned by DeleteTopic when subscriptions still match
// the topic's name and force was not requested.
var ErrTopicInUse = fmt.Errorf("pubsub: topic has active subscriptions")

// ErrNoSuchSubscription is returned by Unsubscribe/Ack for an unknown id.
var ErrNoSuchSubscription = fmt.Errorf("pubsub: no such subscription")

type pendingAck struct {
	Publication    domain.Publication
	SubscriptionID string
}

// Coordinator owns the topic registry, the pattern-matched subscription
// registry, and per-topic publication history. Delivery to each matched
// subscription runs through a dedicated Watermill consumer handler backed
// by an in-process GoChannel.
type Coordinator struct {
	cfg    config.PubSubConfig
	logger watermill.LoggerAdapter

	mu         sync.RWMutex
	topics     map[string]*domain.Topic
	subs       map[string]*domain.Subscription
	history    map[string][]domain.Publication
	rrCounters map[string]int
	pending    map[string]pendingAck
	limiters   map[string]*rate.Limiter

	bus    *gochannel.GoChannel
	router *message.Router
	cancel context.CancelFunc
}

// New constructs a Coordinator. Call Start before Publish so the
// underlying router is running.
func New(cfg config.PubSubConfig) (*Coordinator, error) {
	logger := watermill.NewStdLogger(false, false)
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, fmt.Errorf("pubsub: create router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	return &Coordinator{
		cfg:        cfg,
		logger:     logger,
		topics:     make(map[string]*domain.Topic),
		subs:       make(map[string]*domain.Subscription),
		history:    make(map[string][]domain.Publication),
		rrCounters: make(map[string]int),
		pending:    make(map[string]pendingAck),
		limiters:   make(map[string]*rate.Limiter),
		bus:        bus,
		router:     router,
	}, nil
}

// Start runs the underlying Watermill router in the background.
func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go func() {
		if err := c.router.Run(runCtx); err != nil {
			logging.Err(err).Msg("pubsub router exited")
		}
	}()
	<-c.router.Running()
}

// Stop closes the router and the underlying bus.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	_ = c.router.Close()
	_ = c.bus.Close()
}

// CreateTopic registers a new topic. An empty ID is assigned one.
func (c *Coordinator) CreateTopic(topic domain.Topic) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.topics[topic.Name]; exists {
		return "", ErrTopicExists
	}
	if topic.ID == "" {
		topic.ID = uuid.NewString()
	}
	t := topic
	c.topics[t.Name] = &t
	if c.cfg.PublishRateLimit > 0 {
		c.limiters[t.Name] = rate.NewLimiter(rate.Limit(c.cfg.PublishRateLimit), int(math.Max(1, c.cfg.PublishRateLimit)))
	}
	return t.ID, nil
}

// DeleteTopic removes a topic. Unless force is true, it refuses to delete
// a topic that any active subscription pattern still matches.
func (c *Coordinator) DeleteTopic(name string, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.topics[name]; !exists {
		return ErrNoSuchTopic
	}
	if !force {
		for _, sub := range c.subs {
			if domain.MatchDotted(sub.TopicPattern, name) {
				return ErrTopicInUse
			}
		}
	}
	delete(c.topics, name)
	delete(c.history, name)
	delete(c.rrCounters, name)
	delete(c.limiters, name)
	return nil
}

// Subscribe registers a standing interest in a topic pattern and wires a
// dedicated consumer handler, with panic recovery and retry/backoff
// middleware; the same retry policy applies whatever the delivery mode.
func (c *Coordinator) Subscribe(subscriberID, pattern string, callback domain.SubscriptionCallback, subType domain.SubscriptionType, mode domain.DeliveryMode, priority int, filters map[string]any, transforms []string) string {
	id := uuid.NewString()
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	sub := &domain.Subscription{
		ID:           id,
		SubscriberID: subscriberID,
		TopicPattern: pattern,
		Callback:     callback,
		Type:         subType,
		Mode:         mode,
		Priority:     priority,
		Filters:      filters,
		Transforms:   transforms,
		MaxRetries:   maxRetries,
	}

	c.mu.Lock()
	c.subs[id] = sub
	c.mu.Unlock()

	backoffFactor := c.cfg.BackoffFactor
	if backoffFactor <= 1 {
		backoffFactor = 2.0
	}
	h := c.router.AddConsumerHandler(id, internalTopic(id), c.bus, c.makeHandler(id))
	h.AddMiddleware(middleware.Retry{
		MaxRetries:      maxRetries,
		InitialInterval: time.Second,
		MaxInterval:     60 * time.Second,
		Multiplier:      backoffFactor,
		Logger:          c.logger,
	}.Middleware)

	return id
}

// Unsubscribe deactivates a subscription. Its Watermill handler keeps
// running but receives no further publications since Publish consults the
// live subscription registry before delivering.
func (c *Coordinator) Unsubscribe(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[id]; !ok {
		return ErrNoSuchSubscription
	}
	delete(c.subs, id)
	return nil
}

// Publish fans a payload out to every subscription whose pattern matches
// topic, per the topic's dispatch type, applying filters and transforms
// along the way. Returns the new publication's id.
func (c *Coordinator) Publish(topicName string, payload map[string]any, publisher string, priority int, mode domain.DeliveryMode, expiry *time.Time, correlation, tenant string, headers map[string]string) (string, error) {
	c.mu.RLock()
	topic, ok := c.topics[topicName]
	limiter := c.limiters[topicName]
	c.mu.RUnlock()
	if !ok {
		return "", ErrNoSuchTopic
	}
	if limiter != nil && !limiter.Allow() {
		return "", fmt.Errorf("pubsub: publish rate limit exceeded for topic %s", topicName)
	}

	pub := domain.Publication{
		ID:            uuid.NewString(),
		Topic:         topicName,
		Payload:       payload,
		Publisher:     publisher,
		Priority:      priority,
		Mode:          mode,
		ExpiresAt:     expiry,
		CorrelationID: correlation,
		TenantID:      tenant,
		Headers:       headers,
		PublishedAt:   time.Now().UTC(),
	}

	c.recordHistory(topic.Name, pub)
	metrics.PubsubPublished.WithLabelValues(topic.Name).Inc()

	targets := c.selectTargets(topic, pub)
	for _, sub := range targets {
		c.deliver(sub, pub)
	}
	return pub.ID, nil
}

// selectTargets finds every subscription matching the topic and filters,
// then narrows to the topic type's fan-out set.
func (c *Coordinator) selectTargets(topic *domain.Topic, pub domain.Publication) []*domain.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	var candidates []*domain.Subscription
	for _, sub := range c.subs {
		if !domain.MatchDotted(sub.TopicPattern, topic.Name) {
			continue
		}
		if !passesFilters(sub, pub) {
			continue
		}
		candidates = append(candidates, sub)
	}
	if len(candidates) == 0 {
		return nil
	}

	switch topic.Type {
	case domain.TopicRoundRobin:
		idx := c.rrCounters[topic.Name] % len(candidates)
		c.rrCounters[topic.Name]++
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
		return []*domain.Subscription{candidates[idx]}
	case domain.TopicPriority:
		best := candidates[0]
		for _, s := range candidates[1:] {
			if s.Priority > best.Priority {
				best = s
			}
		}
		return []*domain.Subscription{best}
	case domain.TopicLoadBalanced:
		best := candidates[0]
		for _, s := range candidates[1:] {
			if s.InFlight < best.InFlight {
				best = s
			}
		}
		return []*domain.Subscription{best}
	default: // BROADCAST
		return candidates
	}
}

// deliver applies transforms then publishes the per-subscription message
// onto that subscription's internal topic for the router to pick up.
func (c *Coordinator) deliver(sub *domain.Subscription, pub domain.Publication) {
	transformed := pub
	if len(sub.Transforms) > 0 {
		transformed.Payload = applyTransforms(pub.Payload, sub.Transforms)
	}

	if sub.Mode == domain.DeliveryAtLeastOnce || sub.Mode == domain.DeliveryExactlyOnce {
		c.mu.Lock()
		c.pending[pendingKey(pub.ID, sub.ID)] = pendingAck{Publication: transformed, SubscriptionID: sub.ID}
		c.mu.Unlock()
		metrics.PubsubPendingAcks.Set(float64(c.pendingLen()))
	}

	data, err := json.Marshal(transformed)
	if err != nil {
		logging.Err(err).Str("subscription_id", sub.ID).Msg("pubsub: failed to encode publication for delivery")
		return
	}
	msg := message.NewMessage(transformed.ID+":"+sub.ID, data)

	if err := c.bus.Publish(internalTopic(sub.ID), msg); err != nil {
		logging.Err(err).Str("subscription_id", sub.ID).Msg("pubsub: failed to hand off publication to subscriber")
	}
}

// makeHandler builds the Watermill consumer callback for a subscription:
// decode, track in-flight count, invoke the subscriber's callback.
func (c *Coordinator) makeHandler(subID string) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		c.mu.RLock()
		sub, ok := c.subs[subID]
		c.mu.RUnlock()
		if !ok {
			return nil
		}

		var pub domain.Publication
		if err := json.Unmarshal(msg.Payload, &pub); err != nil {
			return nil
		}

		c.mu.Lock()
		sub.InFlight++
		c.mu.Unlock()
		err := sub.Callback(pub)
		c.mu.Lock()
		sub.InFlight--
		c.mu.Unlock()

		if err != nil {
			return err
		}
		metrics.PubsubDelivered.WithLabelValues(pub.Topic).Inc()
		return nil
	}
}

// Ack clears a pending AT_LEAST_ONCE/EXACTLY_ONCE acknowledgment,
// typically in response to a pubsub.subscription.ack event.
func (c *Coordinator) Ack(publicationID, subscriptionID string) {
	c.mu.Lock()
	delete(c.pending, pendingKey(publicationID, subscriptionID))
	c.mu.Unlock()
	metrics.PubsubPendingAcks.Set(float64(c.pendingLen()))
}

func (c *Coordinator) pendingLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// ReplayMessages returns topic history between from and to (inclusive),
// capped at max entries, and re-delivers each to subscriberID's matching
// subscriptions.
func (c *Coordinator) ReplayMessages(topicName, subscriberID string, from, to time.Time, max int) ([]domain.Publication, error) {
	c.mu.RLock()
	hist := c.history[topicName]
	var subs []*domain.Subscription
	for _, s := range c.subs {
		if s.SubscriberID == subscriberID && domain.MatchDotted(s.TopicPattern, topicName) {
			subs = append(subs, s)
		}
	}
	c.mu.RUnlock()

	var out []domain.Publication
	for _, pub := range hist {
		if pub.PublishedAt.Before(from) || pub.PublishedAt.After(to) {
			continue
		}
		out = append(out, pub)
		for _, s := range subs {
			c.deliver(s, pub)
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (c *Coordinator) recordHistory(topicName string, pub domain.Publication) {
	limit := c.cfg.HistorySize
	if limit <= 0 {
		limit = 1000
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	hist := append(c.history[topicName], pub)
	if len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	c.history[topicName] = hist
}

func internalTopic(subID string) string {
	return "pubsub.sub." + subID
}

func pendingKey(pubID, subID string) string {
	return pubID + ":" + subID
}
