package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists coupon metadata.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Coupon, error)
	Insert(ctx context.Context, c *Coupon) error
	ListValid(ctx context.Context, now time.Time) ([]Coupon, error)
	ListAll(ctx context.Context) ([]Coupon, error)

	// UpdateStock sets the coupon's remaining durable stock.
	UpdateStock(ctx context.Context, id int64, stock int) error

	// ResetDaily restores every coupon's stock to its total stock and
	// moves its validity window to the given day. Returns the coupons
	// after the reset so callers can re-prime the cache.
	ResetDaily(ctx context.Context, day time.Time) ([]Coupon, error)
}

type repo struct {
	db *sql.DB
}

// NewRepository creates a coupon repository.
func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

const couponColumns = `id, name, stock, total_stock, start_time, end_time, created_at, updated_at`

func (r *repo) GetByID(ctx context.Context, id int64) (*Coupon, error) {
	var c Coupon
	err := r.db.QueryRowContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Stock, &c.TotalStock, &c.StartTime, &c.EndTime, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select coupon: %w", err)
	}
	return &c, nil
}

func (r *repo) Insert(ctx context.Context, c *Coupon) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO coupons (id, name, stock, total_stock, start_time, end_time, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`,
		c.ID, c.Name, c.Stock, c.TotalStock, c.StartTime, c.EndTime,
	)
	if err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (r *repo) UpdateStock(ctx context.Context, id int64, stock int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET stock = $1, updated_at = NOW() WHERE id = $2`,
		stock, id,
	)
	if err != nil {
		return fmt.Errorf("update coupon stock: %w", err)
	}
	return nil
}

func (r *repo) ListValid(ctx context.Context, now time.Time) ([]Coupon, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE start_time <= $1 AND end_time >= $1`, now,
	)
	if err != nil {
		return nil, fmt.Errorf("select valid coupons: %w", err)
	}
	return scanCoupons(rows)
}

func (r *repo) ListAll(ctx context.Context) ([]Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	return scanCoupons(rows)
}

func (r *repo) ResetDaily(ctx context.Context, day time.Time) ([]Coupon, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	_, err := r.db.ExecContext(ctx,
		`UPDATE coupons
         SET stock = total_stock, start_time = $1, end_time = $2, updated_at = NOW()`,
		dayStart, dayEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("reset coupons: %w", err)
	}

	return r.ListAll(ctx)
}

func scanCoupons(rows *sql.Rows) ([]Coupon, error) {
	defer rows.Close()

	var coupons []Coupon
	for rows.Next() {
		var c Coupon
		if err := rows.Scan(&c.ID, &c.Name, &c.Stock, &c.TotalStock, &c.StartTime, &c.EndTime, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return coupons, nil
}
