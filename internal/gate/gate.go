// Package gate implements the fast-path admission check for the flash sale:
// an atomic stock/limit check-and-decrement in front of the durable pipeline,
// and its compensating rollback.
package gate

import (
	"context"
	"time"
)

// Result is the outcome of an admission attempt. Infrastructure failures are
// reported as errors, never as a Result, so callers cannot mistake an
// indeterminate gate failure for a sold-out offer.
type Result int

const (
	Admitted Result = iota
	StockExhausted
	LimitExceeded
)

func (r Result) String() string {
	switch r {
	case Admitted:
		return "admitted"
	case StockExhausted:
		return "stock_exhausted"
	case LimitExceeded:
		return "limit_exceeded"
	default:
		return "unknown"
	}
}

// RollbackResult reports whether a rollback actually returned credit.
type RollbackResult int

const (
	// Rolled means one unit of stock and limit credit were returned.
	Rolled RollbackResult = iota
	// NoOp means the user held no admission for the voucher; nothing changed.
	NoOp
)

// Gate is the admission decision surface. Both operations execute as a single
// atomic unit per voucher: concurrent callers never observe stock below zero
// or a user above their limit.
type Gate interface {
	// TryAdmit reserves one unit of stock and one unit of the user's
	// purchase limit, or reports why it could not.
	TryAdmit(ctx context.Context, voucherID, userID int64, limit int) (Result, error)

	// Rollback returns one unit of stock and decrements the user's ledger,
	// floored at zero. Safe to call for users that were never admitted.
	Rollback(ctx context.Context, voucherID, userID int64) (RollbackResult, error)
}

// Order status marker codes stored in the cache, matching the synchronous
// API's outcome vocabulary.
const (
	StatusProcessing = 0
	StatusSuccess    = 1
	StatusFailed     = 2
)

// Store is the full cache surface: the admission gate plus the display-only
// counter reads, activity initialization and short-lived order status markers
// used by the orchestrator's query operations.
type Store interface {
	Gate

	// InitStock sets the voucher's stock counter and clears its purchase
	// ledger. Called on activity start and by the daily reset job.
	InitStock(ctx context.Context, voucherID int64, stock int) error

	// Stock returns the current remaining stock, for display only.
	Stock(ctx context.Context, voucherID int64) (int, error)

	// BoughtCount returns how many units the user has been admitted for.
	BoughtCount(ctx context.Context, voucherID, userID int64) (int, error)

	// SetOrderStatus writes a short-lived status marker for an order.
	SetOrderStatus(ctx context.Context, orderID int64, status int, ttl time.Duration) error

	// OrderStatus reads an order's status marker. ok is false when the
	// marker does not exist or has expired.
	OrderStatus(ctx context.Context, orderID int64) (status int, ok bool, err error)

	// CleanActivity removes all cached state for a voucher.
	CleanActivity(ctx context.Context, voucherID int64) error
}
