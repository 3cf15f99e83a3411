package seckill

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fyongquan/new-top-binfa/internal/gate"
	"github.com/Fyongquan/new-top-binfa/internal/metrics"
	"github.com/Fyongquan/new-top-binfa/internal/mq"
	"github.com/Fyongquan/new-top-binfa/internal/order"
)

const (
	processedTTL        = 10 * time.Minute
	processedMaxEntries = 10000
)

// Consumer drives the fulfillment pipeline: it materializes admitted
// requests into durable orders, re-queues transient failures with increasing
// delay and compensates terminally failed orders from the dead-letter queue.
// Every handler is safe to invoke twice for the same message.
type Consumer struct {
	store     order.Store
	gate      gate.Store
	producer  Producer
	alerter   Alerter
	processed *processedSet
	statusTTL time.Duration
	logger    zerolog.Logger

	// DelayFunc computes the backoff for a re-queued message. Defaults to
	// the message's own ladder; tests shorten it.
	DelayFunc func(msg mq.OrderMessage) time.Duration
}

func NewConsumer(store order.Store, g gate.Store, producer Producer, alerter Alerter, statusTTL time.Duration, logger zerolog.Logger) *Consumer {
	return &Consumer{
		store:     store,
		gate:      g,
		producer:  producer,
		alerter:   alerter,
		processed: newProcessedSet(processedTTL, processedMaxEntries),
		statusTTL: statusTTL,
		logger:    logger,
		DelayFunc: mq.OrderMessage.NextDelay,
	}
}

// Start attaches the consumer to both queues of the broker.
func (c *Consumer) Start(ctx context.Context, broker mq.Broker) error {
	if err := broker.ConsumeOrders(ctx, c.HandleOrder); err != nil {
		return err
	}
	return broker.ConsumeDead(ctx, c.HandleDead)
}

// HandleOrder processes one primary-queue delivery. A nil return
// acknowledges the message; retry and dead-letter routing happen through the
// producer before acknowledging.
func (c *Consumer) HandleOrder(ctx context.Context, msg mq.OrderMessage) error {
	if c.processed.Seen(msg.MessageID) {
		metrics.Duplicates.Inc()
		c.logger.Info().Str("messageId", msg.MessageID).Msg("duplicate delivery skipped")
		return nil
	}

	if err := c.materialize(ctx, msg); err != nil {
		return c.handleFailure(ctx, msg, err)
	}

	c.processed.Mark(msg.MessageID)
	if err := c.gate.SetOrderStatus(ctx, msg.OrderID, gate.StatusSuccess, c.statusTTL); err != nil {
		c.logger.Warn().Err(err).Int64("orderId", msg.OrderID).Msg("set success marker")
	}

	c.logger.Info().
		Str("messageId", msg.MessageID).
		Int64("orderId", msg.OrderID).
		Msg("order materialized")
	return nil
}

// materialize durably records the order and moves it to success. Safe for
// duplicates: creation is keyed by (user, voucher) and the transition only
// wins once.
func (c *Consumer) materialize(ctx context.Context, msg mq.OrderMessage) error {
	stored, err := c.store.CreateIfAbsent(ctx, &order.Order{
		ID:        msg.OrderID,
		UserID:    msg.UserID,
		VoucherID: msg.VoucherID,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return err
	}

	if stored.Status.Terminal() {
		c.logger.Info().
			Int64("orderId", stored.ID).
			Str("status", string(stored.Status)).
			Msg("order already terminal")
		return nil
	}

	swapped, err := c.store.Transition(ctx, stored.ID, order.StatusProcessing, order.StatusSuccess)
	if err != nil {
		return err
	}
	if !swapped {
		// A racing duplicate delivery won the transition. Expected.
		c.logger.Info().Int64("orderId", stored.ID).Msg("transition already applied")
		return nil
	}

	metrics.OrdersCreated.Inc()
	return nil
}

func (c *Consumer) handleFailure(ctx context.Context, msg mq.OrderMessage, cause error) error {
	if msg.CanRetry() {
		retry := msg
		retry.RetryCount++
		delay := c.DelayFunc(retry)

		if err := c.producer.PublishRetry(ctx, retry, delay); err != nil {
			return err
		}
		metrics.Retries.Inc()
		c.logger.Warn().Err(cause).
			Str("messageId", msg.MessageID).
			Int("retryCount", retry.RetryCount).
			Dur("delay", delay).
			Msg("materialization failed, re-queued")
		return nil
	}

	if err := c.producer.PublishDead(ctx, msg); err != nil {
		return err
	}
	metrics.DeadLetters.Inc()
	c.logger.Error().Err(cause).
		Str("messageId", msg.MessageID).
		Int64("orderId", msg.OrderID).
		Msg("retry budget exhausted, routed to dead-letter queue")
	return nil
}

// HandleDead processes one dead-letter delivery. Messages that still have
// retry budget (they arrived here through some path other than normal
// exhaustion) are re-armed; everything else is terminally compensated. This
// path never silently drops a failed order without returning its stock.
func (c *Consumer) HandleDead(ctx context.Context, msg mq.OrderMessage) error {
	if c.processed.Seen(msg.MessageID) {
		metrics.Duplicates.Inc()
		return nil
	}

	if msg.CanRetry() {
		retry := msg
		retry.RetryCount++
		delay := c.DelayFunc(retry)

		if err := c.producer.PublishRetry(ctx, retry, delay); err != nil {
			return err
		}
		c.logger.Warn().
			Str("messageId", msg.MessageID).
			Int("retryCount", retry.RetryCount).
			Msg("dead-lettered message still has retry budget, re-armed")
		return nil
	}

	// Terminal compensation. The order row may not exist if every durable
	// create failed; the transition simply finds nothing to move then.
	swapped, err := c.store.Transition(ctx, msg.OrderID, order.StatusProcessing, order.StatusFailed)
	if err != nil {
		return err
	}
	if !swapped {
		c.logger.Info().Int64("orderId", msg.OrderID).Msg("no processing order to fail")
	}

	if _, err := c.gate.Rollback(ctx, msg.VoucherID, msg.UserID); err != nil {
		return err
	}
	metrics.Rollbacks.Inc()

	c.processed.Mark(msg.MessageID)
	if err := c.gate.SetOrderStatus(ctx, msg.OrderID, gate.StatusFailed, c.statusTTL); err != nil {
		c.logger.Warn().Err(err).Int64("orderId", msg.OrderID).Msg("set failed marker")
	}

	c.alerter.OrderFailed(ctx, msg, "retry budget exhausted")
	return nil
}
