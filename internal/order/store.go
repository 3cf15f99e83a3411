package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store persists orders. Transition is the only legal way to change an
// order's status; there is deliberately no unconditional status write.
type Store interface {
	// CreateIfAbsent inserts o in Processing state. If an order already
	// exists for (user, voucher) the stored order is returned unchanged.
	CreateIfAbsent(ctx context.Context, o *Order) (*Order, error)

	// Transition atomically swaps the status from `from` to `to` and
	// reports whether the swap happened. false means the order is absent
	// or was already moved by a concurrent delivery; that is an expected
	// outcome, not an error.
	Transition(ctx context.Context, orderID int64, from, to Status) (bool, error)

	GetByID(ctx context.Context, orderID int64) (*Order, error)
	FindByUserVoucher(ctx context.Context, userID, voucherID int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	CountByVoucher(ctx context.Context, voucherID int64) (int, error)
}

type pgStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Store backed by Postgres.
func NewPostgresStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func (s *pgStore) CreateIfAbsent(ctx context.Context, o *Order) (*Order, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, voucher_id, status, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $5)
         ON CONFLICT (user_id, voucher_id) DO NOTHING`,
		o.ID, o.UserID, o.VoucherID, StatusProcessing, o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	// Return the stored row: either the one just inserted or the earlier
	// winner for this (user, voucher) pair.
	stored, err := s.FindByUserVoucher(ctx, o.UserID, o.VoucherID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("order for user %d voucher %d missing after insert", o.UserID, o.VoucherID)
	}
	return stored, nil
}

func (s *pgStore) Transition(ctx context.Context, orderID int64, from, to Status) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW()
         WHERE id = $2 AND status = $3`,
		to, orderID, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition order %d %s->%s: %w", orderID, from, to, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *pgStore) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, voucher_id, status, created_at, updated_at
         FROM orders WHERE id = $1`,
		orderID,
	))
}

func (s *pgStore) FindByUserVoucher(ctx context.Context, userID, voucherID int64) (*Order, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, voucher_id, status, created_at, updated_at
         FROM orders WHERE user_id = $1 AND voucher_id = $2`,
		userID, voucherID,
	))
}

func (s *pgStore) scanOne(row *sql.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.VoucherID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	return &o, nil
}

func (s *pgStore) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, voucher_id, status, created_at, updated_at
         FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.VoucherID, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return orders, nil
}

func (s *pgStore) CountByVoucher(ctx context.Context, voucherID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE voucher_id = $1`,
		voucherID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}
