// Package order holds the durable order model and its state machine.
package order

import "time"

// Status is the order lifecycle state. Success and Failed are terminal.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Order is one admitted purchase. At most one order exists per
// (user, voucher) pair; the pair is the idempotency key for the store.
type Order struct {
	ID        int64     `json:"orderId"`
	UserID    int64     `json:"userId"`
	VoucherID int64     `json:"voucherId"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
