package mq

import (
	"context"
	"time"
)

// HandlerFunc processes one delivered message. A nil return acknowledges the
// message; a non-nil return rejects it without re-queuing (the broker will
// not redeliver it), which is reserved for malformed messages and unexpected
// failures that need operator intervention. Retry and dead-letter routing are
// the handler's job, via the Broker's publish side.
type HandlerFunc func(ctx context.Context, msg OrderMessage) error

// Broker is the messaging surface of the fulfillment pipeline: a primary
// queue for newly admitted requests, a delay stage that re-injects a message
// into the primary queue after a backoff, and a dead-letter queue for
// terminal handling.
type Broker interface {
	// PublishOrder puts a message on the primary queue.
	PublishOrder(ctx context.Context, msg OrderMessage) error

	// PublishRetry holds the message for delay, then re-injects it into
	// the primary queue.
	PublishRetry(ctx context.Context, msg OrderMessage, delay time.Duration) error

	// PublishDead routes the message to the dead-letter queue.
	PublishDead(ctx context.Context, msg OrderMessage) error

	// ConsumeOrders starts consuming the primary queue until ctx is done.
	ConsumeOrders(ctx context.Context, h HandlerFunc) error

	// ConsumeDead starts consuming the dead-letter queue until ctx is done.
	ConsumeDead(ctx context.Context, h HandlerFunc) error

	Close() error
}
