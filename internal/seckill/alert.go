package seckill

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fyongquan/new-top-binfa/internal/mq"
)

// Alerter notifies operators that an order failed terminally and its stock
// was compensated. Alerts must carry the full message context; this path is
// the last stop before a human, so it never drops information.
type Alerter interface {
	OrderFailed(ctx context.Context, msg mq.OrderMessage, reason string)
}

// AlertSink is an optional durable destination for alert records. The Redis
// and memory gate stores both satisfy it.
type AlertSink interface {
	AppendAlertLog(ctx context.Context, entry string) error
}

// LogAlerter writes alerts to the service log and, when a sink is present,
// appends a JSON record for later inspection.
type LogAlerter struct {
	logger zerolog.Logger
	sink   AlertSink
}

func NewLogAlerter(logger zerolog.Logger, sink AlertSink) *LogAlerter {
	return &LogAlerter{logger: logger, sink: sink}
}

type alertRecord struct {
	MessageID  string    `json:"messageId"`
	UserID     int64     `json:"userId"`
	VoucherID  int64     `json:"voucherId"`
	OrderID    int64     `json:"orderId"`
	RetryCount int       `json:"retryCount"`
	Reason     string    `json:"reason"`
	At         time.Time `json:"at"`
}

func (a *LogAlerter) OrderFailed(ctx context.Context, msg mq.OrderMessage, reason string) {
	a.logger.Error().
		Str("messageId", msg.MessageID).
		Int64("userId", msg.UserID).
		Int64("voucherId", msg.VoucherID).
		Int64("orderId", msg.OrderID).
		Int("retryCount", msg.RetryCount).
		Str("reason", reason).
		Msg("order failed terminally, stock compensated")

	if a.sink == nil {
		return
	}

	rec := alertRecord{
		MessageID:  msg.MessageID,
		UserID:     msg.UserID,
		VoucherID:  msg.VoucherID,
		OrderID:    msg.OrderID,
		RetryCount: msg.RetryCount,
		Reason:     reason,
		At:         time.Now().UTC(),
	}
	body, err := json.Marshal(rec)
	if err != nil {
		a.logger.Error().Err(err).Msg("marshal alert record")
		return
	}
	if err := a.sink.AppendAlertLog(ctx, string(body)); err != nil {
		a.logger.Error().Err(err).Msg("append alert record")
	}
}
