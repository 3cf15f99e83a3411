// Package seckill implements the flash-sale orchestrator and the
// asynchronous fulfillment pipeline that materializes admitted requests into
// durable orders.
package seckill

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fyongquan/new-top-binfa/internal/gate"
	"github.com/Fyongquan/new-top-binfa/internal/id"
	"github.com/Fyongquan/new-top-binfa/internal/metrics"
	"github.com/Fyongquan/new-top-binfa/internal/mq"
)

// Outcome is the synchronous purchase result code returned to callers.
type Outcome int

const (
	OutcomeSuccess        Outcome = 0
	OutcomeStockExhausted Outcome = 1
	OutcomeLimitExceeded  Outcome = 2
	OutcomeSystemError    Outcome = 3
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeStockExhausted:
		return "stock_exhausted"
	case OutcomeLimitExceeded:
		return "limit_exceeded"
	default:
		return "system_error"
	}
}

// PurchaseResult is the outcome of one purchase call. OrderID is only set on
// success; the order is still being materialized asynchronously when the
// call returns.
type PurchaseResult struct {
	Outcome Outcome
	OrderID int64
}

// Producer is the publish side of the fulfillment pipeline.
type Producer interface {
	PublishOrder(ctx context.Context, msg mq.OrderMessage) error
	PublishRetry(ctx context.Context, msg mq.OrderMessage, delay time.Duration) error
	PublishDead(ctx context.Context, msg mq.OrderMessage) error
}

// Service is the synchronous entry point of the flash sale: it asks the
// admission gate for a decision, allocates an order id and hands the request
// to the pipeline without waiting for durable materialization.
type Service struct {
	gate      gate.Store
	producer  Producer
	ids       *id.Generator
	statusTTL time.Duration
	logger    zerolog.Logger
}

func NewService(g gate.Store, producer Producer, ids *id.Generator, statusTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		gate:      g,
		producer:  producer,
		ids:       ids,
		statusTTL: statusTTL,
		logger:    logger,
	}
}

// Purchase attempts to buy one unit of the voucher for the user. A non-nil
// error always pairs with OutcomeSystemError and means the admission state
// is indeterminate or the handoff failed; it is never retried here.
func (s *Service) Purchase(ctx context.Context, userID, voucherID int64, limit int) (PurchaseResult, error) {
	res, err := s.gate.TryAdmit(ctx, voucherID, userID, limit)
	if err != nil {
		metrics.Admissions.WithLabelValues("gate_failure").Inc()
		s.logger.Error().Err(err).
			Int64("userId", userID).
			Int64("voucherId", voucherID).
			Msg("admission gate failure")
		return PurchaseResult{Outcome: OutcomeSystemError}, err
	}
	metrics.Admissions.WithLabelValues(res.String()).Inc()

	switch res {
	case gate.StockExhausted:
		return PurchaseResult{Outcome: OutcomeStockExhausted}, nil
	case gate.LimitExceeded:
		return PurchaseResult{Outcome: OutcomeLimitExceeded}, nil
	}

	orderID := s.ids.NextOrderID()

	// Marker only; failure to write it does not undo the admission.
	if err := s.gate.SetOrderStatus(ctx, orderID, gate.StatusProcessing, s.statusTTL); err != nil {
		s.logger.Warn().Err(err).Int64("orderId", orderID).Msg("set processing marker")
	}

	msg := mq.NewOrderMessage(userID, voucherID, orderID)
	if err := s.producer.PublishOrder(ctx, msg); err != nil {
		// The message never reached the queue, so the admission can be
		// compensated immediately.
		if _, rbErr := s.gate.Rollback(ctx, voucherID, userID); rbErr != nil {
			s.logger.Error().Err(rbErr).
				Int64("userId", userID).
				Int64("voucherId", voucherID).
				Msg("rollback after failed enqueue")
		}
		if stErr := s.gate.SetOrderStatus(ctx, orderID, gate.StatusFailed, s.statusTTL); stErr != nil {
			s.logger.Warn().Err(stErr).Int64("orderId", orderID).Msg("set failed marker")
		}
		return PurchaseResult{Outcome: OutcomeSystemError}, err
	}

	s.logger.Info().
		Int64("userId", userID).
		Int64("voucherId", voucherID).
		Int64("orderId", orderID).
		Str("messageId", msg.MessageID).
		Msg("purchase admitted")

	return PurchaseResult{Outcome: OutcomeSuccess, OrderID: orderID}, nil
}

// OrderStatus reads the short-lived status marker for an order. ok is false
// when the marker has expired or never existed.
func (s *Service) OrderStatus(ctx context.Context, orderID int64) (int, bool, error) {
	return s.gate.OrderStatus(ctx, orderID)
}

// Stock returns the voucher's current cached stock.
func (s *Service) Stock(ctx context.Context, voucherID int64) (int, error) {
	return s.gate.Stock(ctx, voucherID)
}

// BoughtCount returns how many units the user has been admitted for.
func (s *Service) BoughtCount(ctx context.Context, voucherID, userID int64) (int, error) {
	return s.gate.BoughtCount(ctx, voucherID, userID)
}

// InitActivity resets the voucher's stock counter and purchase ledger.
func (s *Service) InitActivity(ctx context.Context, voucherID int64, stock int) error {
	if err := s.gate.InitStock(ctx, voucherID, stock); err != nil {
		return err
	}
	s.logger.Info().Int64("voucherId", voucherID).Int("stock", stock).Msg("activity initialized")
	return nil
}
