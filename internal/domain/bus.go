package domain

import (
	"context"
)

// EventBus carries the scoring pipeline's events: batch submissions in,
// scored-run and alert events out. Backed by Go channels (Community) or
// NATS (Pro). All methods require tenantID for strict multi-tenancy
// isolation; publishing and subscribing are fire-and-forget, a run is
// never blocked on its consumers.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the scoring pipeline.
const (
	TopicBatchSubmitted = "harrier.batch.submitted"
	TopicRunScored      = "harrier.run.scored"
	TopicRefundDecided  = "harrier.refund.decided"
	TopicHighRisk       = "harrier.risk.high"
)

// HighRiskAlert is the TopicHighRisk payload: the HIGH-tier rows of one
// scored run, for review-queue consumers.
type HighRiskAlert struct {
	RunID    string           `json:"runId"`
	BatchID  string           `json:"batchId"`
	Vehicles []VehicleSummary `json:"vehicles"`
}
