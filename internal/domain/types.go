// TaxPoynt Message Routing Fabric
// Copyright 2026 TaxPoynt Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mukhtar-github/taxpoynt-platform-sub005

// Package domain holds the shared data model of the routing fabric: the
// types every component (event bus, queue manager, pub-sub coordinator,
// message router, dead-letter handler, circuit breaker, health checker,
// scaling coordinator) reads or writes. Keeping them in one package avoids
// import cycles between components that both consume and produce the same
// records (e.g. the dead-letter handler consumes QueuedMessage and the
// queue manager consumes DeadLetterMessage via replay).
package domain

import "time"

// Role identifies the business role of a registered service.
type Role string

const (
	RoleSI               Role = "SI"
	RoleAPP              Role = "APP"
	RoleHybrid           Role = "HYBRID"
	RoleHybridCoordinator Role = "HYBRID_COORDINATOR"
	RoleCore             Role = "CORE"
)

// Scope is the audience tag for an event.
type Scope string

const (
	ScopeGlobal     Scope = "GLOBAL"
	ScopeSIServices Scope = "SI_SERVICES"
	ScopeAPPServices Scope = "APP_SERVICES"
	ScopeHybrid     Scope = "HYBRID"
	ScopeTenant     Scope = "TENANT"
)

// Priority is the shared priority scale used by events, queued messages,
// and endpoints. Higher values sort first.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 8
	PriorityCritical Priority = 10
)

// ParsePriority maps the four named levels from spec.md's Event definition
// onto the numeric scale; unknown names default to Normal.
func ParsePriority(name string) Priority {
	switch name {
	case "critical", "CRITICAL":
		return PriorityCritical
	case "high", "HIGH":
		return PriorityHigh
	case "low", "LOW":
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// MessageType classifies a RoutedMessage.
type MessageType string

const (
	MessageTypeEvent        MessageType = "EVENT"
	MessageTypeCommand      MessageType = "COMMAND"
	MessageTypeQuery        MessageType = "QUERY"
	MessageTypeResponse     MessageType = "RESPONSE"
	MessageTypeNotification MessageType = "NOTIFICATION"
	MessageTypeAlert        MessageType = "ALERT"
)

// Event is the immutable record emitted onto the event bus.
type Event struct {
	ID            string
	Type          string
	Payload       map[string]any
	Source        string
	Scope         Scope
	Priority      Priority
	CreatedAt     time.Time
	TenantID      string
	CorrelationID string
	RetryCount    int
	MaxRetries    int
	Tags          []string
	Metadata      map[string]any
}

// RoutingContext carries the source/target addressing data a RoutedMessage
// needs for dispatch, separate from the payload itself.
type RoutingContext struct {
	SourceService  string
	SourceRole     Role
	TargetServices []string
	TargetRole     Role
	TenantID       string
	CorrelationID  string
}

// RoutedMessage is an Event plus routing metadata and an append-only route
// history. Invariant: RouteHistory has no duplicate endpoint ids within a
// single strategy execution, except under RETRY.
type RoutedMessage struct {
	Event
	MessageType  MessageType
	Context      RoutingContext
	ExpiresAt    *time.Time
	RouteHistory []string
}

// HealthStatus is the liveness classification of a ServiceEndpoint or a
// checked service.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthStale     HealthStatus = "stale"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// Callback is the single typed delivery interface every in-process consumer
// implements. This replaces the source system's heterogeneous 1/2/3-argument
// callback forms (spec.md §9) with one signature and adapter wrappers.
type Callback func(ctx DeliveryContext) (map[string]any, error)

// DeliveryContext is passed to a Callback; it is the "deliveryContext"
// argument referenced by spec.md §4.4.
type DeliveryContext struct {
	Operation     string
	Payload       map[string]any
	SourceService string
	SourceRole    Role
	TenantID      string
	CorrelationID string
}

// ServiceEndpoint is a registered destination: an in-process callback or a
// URL, tagged with role, priority, and health.
type ServiceEndpoint struct {
	ID           string
	ServiceName  string
	Role         Role
	URL          string
	Callback     Callback
	Priority     int
	Active       bool
	LoadFactor   float64
	LastActivity time.Time
	Health       HealthStatus
	Tags         []string
	Metadata     map[string]any // Metadata["operations"] is a []string allow-list, advertised but not enforced

	// Load metrics consulted by the LOAD_BALANCED strategy.
	RequestsPerMinute float64
	AvgResponseTimeMs float64
	ErrorRate         float64
	ActiveConnections int
}

// Operations returns the endpoint's advertised operation set, or nil if
// the endpoint did not advertise one.
func (e *ServiceEndpoint) Operations() []string {
	raw, ok := e.Metadata["operations"]
	if !ok {
		return nil
	}
	ops, _ := raw.([]string)
	return ops
}

// Strategy is a message-delivery strategy selectable by a RoutingRule.
type Strategy string

const (
	StrategyBroadcast    Strategy = "BROADCAST"
	StrategyRoundRobin   Strategy = "ROUND_ROBIN"
	StrategyPriority     Strategy = "PRIORITY"
	StrategyFailover     Strategy = "FAILOVER"
	StrategyLoadBalanced Strategy = "LOAD_BALANCED"
)

// RoutingRule matches source/target service and message/operation patterns
// and selects a delivery Strategy. Invariant: higher Priority wins among
// simultaneously matching rules.
type RoutingRule struct {
	ID              string
	SourcePattern   string
	TargetPattern   string
	MessagePattern  string
	SourceRole      Role // empty means unconstrained
	TargetRole      Role // empty means unconstrained
	Strategy        Strategy
	Priority        int
	Conditions      map[string]any
	Transformations []string
	Filters         map[string]any
}

// QueueStatus is the lifecycle state of a QueuedMessage.
type QueueStatus string

const (
	StatusQueued     QueueStatus = "QUEUED"
	StatusProcessing QueueStatus = "PROCESSING"
	StatusCompleted  QueueStatus = "COMPLETED"
	StatusFailed     QueueStatus = "FAILED"
	StatusRetry      QueueStatus = "RETRY"
	StatusDeadLetter QueueStatus = "DEAD_LETTER"
	StatusExpired    QueueStatus = "EXPIRED"
)

// QueuedMessage is a RoutedMessage that has entered a named queue.
type QueuedMessage struct {
	RoutedMessage
	QueueName     string
	ScheduledTime time.Time
	ExpiryTime    *time.Time
	Status        QueueStatus
	ConsumerID    string
}

// TopicType selects how a Publication fans out to matching Subscriptions.
type TopicType string

const (
	TopicBroadcast    TopicType = "BROADCAST"
	TopicRoundRobin   TopicType = "ROUND_ROBIN"
	TopicPriority     TopicType = "PRIORITY"
	TopicLoadBalanced TopicType = "LOAD_BALANCED"
)

// Topic is a named pub-sub channel.
type Topic struct {
	ID            string
	Name          string
	Type          TopicType
	Scope         Scope
	Retention     time.Duration
	SubscriberCap int // 0 = unbounded
	FilterDefaults map[string]any
}

// SubscriptionType is the lifetime discipline of a Subscription.
type SubscriptionType string

const (
	SubscriptionPersistent SubscriptionType = "PERSISTENT"
	SubscriptionTemporary  SubscriptionType = "TEMPORARY"
	SubscriptionDurable    SubscriptionType = "DURABLE"
	SubscriptionEphemeral  SubscriptionType = "EPHEMERAL"
)

// DeliveryMode is the acknowledgement discipline of a Publication.
type DeliveryMode string

const (
	DeliveryAtMostOnce  DeliveryMode = "AT_MOST_ONCE"
	DeliveryAtLeastOnce DeliveryMode = "AT_LEAST_ONCE"
	DeliveryExactlyOnce DeliveryMode = "EXACTLY_ONCE"
)

// SubscriptionCallback is invoked for each Publication a Subscription
// matches. Returning an error marks the delivery failed for retry purposes.
type SubscriptionCallback func(pub Publication) error

// Subscription is a standing interest in a topic pattern.
type Subscription struct {
	ID           string
	SubscriberID string
	TopicPattern string
	Callback     SubscriptionCallback
	Type         SubscriptionType
	Mode         DeliveryMode
	Priority     int
	Filters      map[string]any
	Transforms   []string
	MaxRetries   int

	// inFlight counts messages currently being delivered, consulted by the
	// LOAD_BALANCED topic dispatch strategy. Mutated only by the pubsub
	// package holding the subscription registry's lock.
	InFlight int
}

// Publication is a single message published to a Topic.
type Publication struct {
	ID            string
	Topic         string
	Payload       map[string]any
	Publisher     string
	Priority      int
	Mode          DeliveryMode
	ExpiresAt     *time.Time
	CorrelationID string
	TenantID      string
	Headers       map[string]string
	PublishedAt   time.Time
}

// FailureReason classifies why a message ended up in the dead-letter path.
type FailureReason string

const (
	FailureProcessingError       FailureReason = "PROCESSING_ERROR"
	FailureTimeout               FailureReason = "TIMEOUT"
	FailureInvalidFormat         FailureReason = "INVALID_FORMAT"
	FailureConsumerUnavailable   FailureReason = "CONSUMER_UNAVAILABLE"
	FailureRetryExhausted        FailureReason = "RETRY_EXHAUSTED"
	FailurePoisonMessage         FailureReason = "POISON_MESSAGE"
	FailureResourceUnavailable   FailureReason = "RESOURCE_UNAVAILABLE"
	FailurePermissionDenied      FailureReason = "PERMISSION_DENIED"
	FailureDependencyFailure     FailureReason = "DEPENDENCY_FAILURE"
	FailureCircuitBreakerOpen    FailureReason = "CIRCUIT_BREAKER_OPEN"
)

// FailureContext records why and where a message failed.
type FailureContext struct {
	FailureID     string
	Reason        FailureReason
	ErrorMessage  string
	SourceService string
	SourceQueue   string
	FailedAt      time.Time
	RetryCount    int
	StackTrace    string
}

// RecoveryAction is a candidate next step proposed for a dead-lettered
// message.
type RecoveryAction string

const (
	ActionRetry              RecoveryAction = "RETRY"
	ActionRouteAlternative   RecoveryAction = "ROUTE_ALTERNATIVE"
	ActionTransformRetry     RecoveryAction = "TRANSFORM_RETRY"
	ActionManualIntervention RecoveryAction = "MANUAL_INTERVENTION"
	ActionDiscard            RecoveryAction = "DISCARD"
	ActionArchive            RecoveryAction = "ARCHIVE"
)

// RecoveryStep is one entry of a dead-letter recovery plan.
type RecoveryStep struct {
	Action          RecoveryAction
	Confidence      float64
	EstimatedSuccess float64
}

// DeadLetterMessage wraps a failed QueuedMessage with failure analysis.
type DeadLetterMessage struct {
	ID                string
	Original          QueuedMessage
	Failure           FailureContext
	RecoveryAttempts  int
	PriorityScore     float64
	Poison            bool
	RecoveryPlan      []RecoveryStep
	AnalysisResults   map[string]any
	Tags              []string
	ArchivedAt        *time.Time
}

// CircuitState is a CircuitBreakerState's position in the CLOSED/OPEN/
// HALF_OPEN state machine.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// CircuitBreakerState is the serializable snapshot of a named breaker,
// mirrored to the shared store for multi-replica visibility.
type CircuitBreakerState struct {
	Name                string
	State               CircuitState
	ConsecutiveFailures int
	ConsecutiveSuccesses int
	LastFailureTime     time.Time
	HalfOpenInFlight    int
	RollingFailures     []time.Time
	Timeouts            int64
	TotalCalls          int64
	TotalFailures       int64
}

// ScalingInstanceMetrics is the per-replica telemetry the scaling
// coordinator collects and persists.
type ScalingInstanceMetrics struct {
	InstanceID          string
	CPU                 float64
	MemoryMB            float64
	MessagesPerSecond   float64
	RoutingLatencyMs    float64
	QueueDepth          int
	HealthScore         float64
	LastHeartbeat       time.Time
	UptimeSeconds       float64
	ErrorRate           float64
}

// ComputeHealthScore implements spec.md §3's formula:
//
//	0.3·(1 − latency/1000) + 0.4·(1 − error_rate) + 0.3·freshness
//
// clamped to [0,1]. freshness is 1 when the heartbeat is current and decays
// linearly to 0 over a 60s staleness window.
func ComputeHealthScore(latencyMs, errorRate float64, heartbeatAge time.Duration) float64 {
	latencyTerm := 1 - latencyMs/1000
	freshness := 1 - heartbeatAge.Seconds()/60
	score := 0.3*latencyTerm + 0.4*(1-errorRate) + 0.3*freshness
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// ServiceHealthStatus is the status value of HealthMetrics.
type ServiceHealthStatus string

const (
	ServiceHealthy   ServiceHealthStatus = "HEALTHY"
	ServiceDegraded  ServiceHealthStatus = "DEGRADED"
	ServiceUnhealthy ServiceHealthStatus = "UNHEALTHY"
	ServiceUnknown   ServiceHealthStatus = "UNKNOWN"
)

// HealthMetrics is the rolling health record kept per monitored service.
type HealthMetrics struct {
	ServiceName         string
	Status              ServiceHealthStatus
	LastCheck           time.Time
	LastSuccess         time.Time
	LastFailure         time.Time
	ResponseTimeMs      float64
	SuccessCount        int64
	FailureCount        int64
	ConsecutiveFailures int
	History             []bool // capped at 100, most recent last
}

// UptimePercentage returns success/(success+failure), or 1 if no checks
// have run yet.
func (m *HealthMetrics) UptimePercentage() float64 {
	total := m.SuccessCount + m.FailureCount
	if total == 0 {
		return 1
	}
	return float64(m.SuccessCount) / float64(total)
}

// RecordCheck appends a check outcome to History, capping it at 100 entries.
func (m *HealthMetrics) RecordCheck(ok bool) {
	m.History = append(m.History, ok)
	if len(m.History) > 100 {
		m.History = m.History[len(m.History)-100:]
	}
}
