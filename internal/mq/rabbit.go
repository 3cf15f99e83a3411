package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Queue topology. The primary queue dead-letters into the DLX; the delay
// queue has no consumer and dead-letters expired messages into the retry
// binding, where a re-injection consumer puts them back on the primary queue.
const (
	OrderExchange = "seckill.order.exchange"
	DelayExchange = "seckill.order.delay.exchange"
	DLXExchange   = "seckill.order.dlx.exchange"

	OrderQueue = "seckill.order.queue"
	DelayQueue = "seckill.order.delay.queue"
	RetryQueue = "seckill.order.retry.queue"
	DLXQueue   = "seckill.order.dlx.queue"

	orderRoutingKey = "seckill.order.create"
	delayRoutingKey = "seckill.order.delay"
	retryRoutingKey = "seckill.order.retry"
	dlxRoutingKey   = "dlx"

	consumerTag = "seckill-service"
)

// Rabbit is the RabbitMQ-backed Broker.
type Rabbit struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	logger zerolog.Logger
}

// NewRabbit declares the full topology and returns a ready broker. Publisher
// confirms are enabled and logged; they are observability only, not a
// correctness mechanism.
func NewRabbit(conn *amqp.Connection, logger zerolog.Logger) (*Rabbit, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 64))
	go func() {
		for c := range confirms {
			if !c.Ack {
				logger.Error().Uint64("deliveryTag", c.DeliveryTag).Msg("publish not confirmed")
			}
		}
	}()

	return &Rabbit{conn: conn, pubCh: ch, logger: logger}, nil
}

func declareTopology(ch *amqp.Channel) error {
	for _, ex := range []string{OrderExchange, DelayExchange, DLXExchange} {
		if err := ch.ExchangeDeclare(ex, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	_, err := ch.QueueDeclare(OrderQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DLXExchange,
		"x-dead-letter-routing-key": dlxRoutingKey,
	})
	if err != nil {
		return fmt.Errorf("declare %s: %w", OrderQueue, err)
	}
	if err := ch.QueueBind(OrderQueue, orderRoutingKey, OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", OrderQueue, err)
	}

	// Expired messages fall through to the retry binding.
	_, err = ch.QueueDeclare(DelayQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    OrderExchange,
		"x-dead-letter-routing-key": retryRoutingKey,
	})
	if err != nil {
		return fmt.Errorf("declare %s: %w", DelayQueue, err)
	}
	if err := ch.QueueBind(DelayQueue, delayRoutingKey, DelayExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", DelayQueue, err)
	}

	_, err = ch.QueueDeclare(RetryQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare %s: %w", RetryQueue, err)
	}
	if err := ch.QueueBind(RetryQueue, retryRoutingKey, OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", RetryQueue, err)
	}

	_, err = ch.QueueDeclare(DLXQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare %s: %w", DLXQueue, err)
	}
	if err := ch.QueueBind(DLXQueue, dlxRoutingKey, DLXExchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", DLXQueue, err)
	}

	return nil
}

func (r *Rabbit) PublishOrder(ctx context.Context, msg OrderMessage) error {
	return r.publish(ctx, OrderExchange, orderRoutingKey, msg, 0)
}

func (r *Rabbit) PublishRetry(ctx context.Context, msg OrderMessage, delay time.Duration) error {
	return r.publish(ctx, DelayExchange, delayRoutingKey, msg, delay)
}

func (r *Rabbit) PublishDead(ctx context.Context, msg OrderMessage) error {
	return r.publish(ctx, DLXExchange, dlxRoutingKey, msg, 0)
}

func (r *Rabbit) publish(ctx context.Context, exchange, key string, msg OrderMessage, expire time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Body:         body,
	}
	if expire > 0 {
		publishing.Expiration = strconv.FormatInt(expire.Milliseconds(), 10)
	}

	if err := r.pubCh.PublishWithContext(pubCtx, exchange, key, false, false, publishing); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	return nil
}

func (r *Rabbit) ConsumeOrders(ctx context.Context, h HandlerFunc) error {
	if err := r.consumeQueue(ctx, OrderQueue, h); err != nil {
		return err
	}
	// Re-injection: messages surfacing from the delay stage go back onto
	// the primary queue.
	return r.consumeQueue(ctx, RetryQueue, func(ctx context.Context, msg OrderMessage) error {
		r.logger.Info().
			Str("messageId", msg.MessageID).
			Int("retryCount", msg.RetryCount).
			Msg("re-injecting delayed message")
		return r.PublishOrder(ctx, msg)
	})
}

func (r *Rabbit) ConsumeDead(ctx context.Context, h HandlerFunc) error {
	return r.consumeQueue(ctx, DLXQueue, h)
}

func (r *Rabbit) consumeQueue(ctx context.Context, queue string, h HandlerFunc) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel for %s: %w", queue, err)
	}

	msgs, err := ch.Consume(queue, consumerTag+"."+queue, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				r.logger.Info().Str("queue", queue).Msg("stopping consumer")
				_ = ch.Close()
				return
			case d, ok := <-msgs:
				if !ok {
					r.logger.Warn().Str("queue", queue).Msg("delivery channel closed")
					return
				}

				var msg OrderMessage
				if err := json.Unmarshal(d.Body, &msg); err != nil {
					r.logger.Error().Err(err).Str("queue", queue).Msg("malformed message")
					_ = d.Nack(false, false)
					continue
				}

				if err := h(ctx, msg); err != nil {
					r.logger.Error().Err(err).
						Str("queue", queue).
						Str("messageId", msg.MessageID).
						Msg("handler rejected message")
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (r *Rabbit) Close() error {
	return r.pubCh.Close()
}
