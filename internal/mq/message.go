// Package mq carries fulfillment messages between the orchestrator and the
// pipeline consumers, over RabbitMQ or an in-process broker.
package mq

import (
	"time"

	"github.com/google/uuid"
)

// MaxRetryCount bounds how many times a message may be re-queued before it
// is routed to the dead-letter queue.
const MaxRetryCount = 3

// OrderMessage is one admitted purchase on its way to durable
// materialization. MessageID is the pipeline's idempotency token, distinct
// from the order's (user, voucher) natural key.
type OrderMessage struct {
	MessageID  string    `json:"messageId"`
	UserID     int64     `json:"userId"`
	VoucherID  int64     `json:"voucherId"`
	OrderID    int64     `json:"orderId"`
	RetryCount int       `json:"retryCount"`
	CreatedAt  time.Time `json:"createTime"`
}

// NewOrderMessage builds a fresh message with a unique id.
func NewOrderMessage(userID, voucherID, orderID int64) OrderMessage {
	return OrderMessage{
		MessageID: uuid.NewString(),
		UserID:    userID,
		VoucherID: voucherID,
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
	}
}

// CanRetry reports whether the message still has retry budget.
func (m OrderMessage) CanRetry() bool {
	return m.RetryCount < MaxRetryCount
}

// NextDelay returns the backoff before the message should be re-delivered,
// based on its retry count: 5s, 10s, 30s, then 60s.
func (m OrderMessage) NextDelay() time.Duration {
	switch m.RetryCount {
	case 0, 1:
		return 5 * time.Second
	case 2:
		return 10 * time.Second
	case 3:
		return 30 * time.Second
	default:
		return 60 * time.Second
	}
}
