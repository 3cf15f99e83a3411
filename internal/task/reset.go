// Package task holds background jobs that keep the sale inventory fresh.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fyongquan/new-top-binfa/internal/coupon"
	"github.com/Fyongquan/new-top-binfa/internal/gate"
)

// StockReset restores every coupon's durable stock to its total at
// midnight and re-primes the admission gate so the next day's sale starts
// from a clean slate.
type StockReset struct {
	coupons coupon.Repository
	gate    gate.Store
	logger  zerolog.Logger

	nowFunc func() time.Time
}

func NewStockReset(coupons coupon.Repository, g gate.Store, logger zerolog.Logger) *StockReset {
	return &StockReset{
		coupons: coupons,
		gate:    g,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Run blocks until ctx is cancelled, firing RunOnce at each local
// midnight.
func (r *StockReset) Run(ctx context.Context) {
	for {
		next := nextMidnight(r.nowFunc())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("daily stock reset failed")
		}
	}
}

// RunOnce resets durable stock for every coupon and re-initializes the
// gate counters. Also clears every buyer's purchase ledger for the
// coupons it touches.
func (r *StockReset) RunOnce(ctx context.Context) error {
	day := r.nowFunc()
	coupons, err := r.coupons.ResetDaily(ctx, day)
	if err != nil {
		return fmt.Errorf("reset daily: %w", err)
	}

	for _, c := range coupons {
		if err := r.gate.InitStock(ctx, c.ID, c.TotalStock); err != nil {
			return fmt.Errorf("init stock for coupon %d: %w", c.ID, err)
		}
	}

	r.logger.Info().Int("coupons", len(coupons)).Msg("daily stock reset complete")
	return nil
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
}
