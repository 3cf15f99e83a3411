package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemoryBroker is an in-process Broker for local mode and tests. The delay
// stage is backed by a DelayScheduler re-injecting into the primary queue.
type MemoryBroker struct {
	orders chan OrderMessage
	dead   chan OrderMessage
	sched  *DelayScheduler
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMemoryBroker creates and starts an in-process broker.
func NewMemoryBroker(buffer int, logger zerolog.Logger) *MemoryBroker {
	if buffer <= 0 {
		buffer = 256
	}
	b := &MemoryBroker{
		orders: make(chan OrderMessage, buffer),
		dead:   make(chan OrderMessage, buffer),
		logger: logger,
	}
	b.sched = NewDelayScheduler(func(msg OrderMessage) {
		if err := b.PublishOrder(context.Background(), msg); err != nil {
			b.logger.Error().Err(err).Str("messageId", msg.MessageID).Msg("re-inject delayed message")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.sched.Run(ctx)
	}()

	return b
}

func (b *MemoryBroker) PublishOrder(ctx context.Context, msg OrderMessage) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("broker closed")
	}
	b.mu.Unlock()

	select {
	case b.orders <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) PublishRetry(ctx context.Context, msg OrderMessage, delay time.Duration) error {
	b.sched.Schedule(msg, delay)
	return nil
}

func (b *MemoryBroker) PublishDead(ctx context.Context, msg OrderMessage) error {
	select {
	case b.dead <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) ConsumeOrders(ctx context.Context, h HandlerFunc) error {
	b.consume(ctx, b.orders, h, "orders")
	return nil
}

func (b *MemoryBroker) ConsumeDead(ctx context.Context, h HandlerFunc) error {
	b.consume(ctx, b.dead, h, "dead")
	return nil
}

func (b *MemoryBroker) consume(ctx context.Context, ch <-chan OrderMessage, h HandlerFunc, queue string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := h(ctx, msg); err != nil {
					// Rejected without requeue; needs operator attention.
					b.logger.Error().Err(err).
						Str("queue", queue).
						Str("messageId", msg.MessageID).
						Msg("message rejected")
				}
			}
		}
	}()
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return nil
}
