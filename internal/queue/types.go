// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

package queue

import (
	"context"
	"time"

	"github.com/mukhtar-github/taxpoynt-platform-sub005/internal/domain"
)

// Type selects a MessageQueue's backing structure.
type Type string

const (
	TypePriority Type = "PRIORITY"
	TypeFIFO     Type = "FIFO"
	TypeLIFO     Type = "LIFO"
	TypeDelayed  Type = "DELAYED"
	TypeBatch    Type = "BATCH"
)

// ConsumerStrategy selects how a queue's workers distribute dequeued
// messages across registered consumers.
type ConsumerStrategy string

const (
	StrategySingleConsumer ConsumerStrategy = "SINGLE_CONSUMER"
	StrategyRoundRobin     ConsumerStrategy = "ROUND_ROBIN"
	StrategyLoadBalanced   ConsumerStrategy = "LOAD_BALANCED"
	StrategyWorkStealing   ConsumerStrategy = "WORK_STEALING"
)

// ConsumerFunc processes a single dequeued message. A non-nil error nacks
// the message.
type ConsumerFunc func(ctx context.Context, msg *domain.QueuedMessage) error

// BatchConsumerFunc processes a batch of ready messages. It may return one
// bool per message (applied positionally) or a single bool applied to the
// whole batch.
type BatchConsumerFunc func(ctx context.Context, batch []*domain.QueuedMessage) ([]bool, error)

type consumer struct {
	id       string
	callback ConsumerFunc
	inFlight int
}

// Options configures a single named queue at creation time.
type Options struct {
	Type             Type
	MaxWorkers       int
	MaxSize          int // 0 = unbounded
	ConsumerStrategy ConsumerStrategy
	BatchSize        int
	BatchTimeout     time.Duration
	RetryDelays      []float64
}
