package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerPublishConsume(t *testing.T) {
	b := NewMemoryBroker(16, zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	require.NoError(t, b.ConsumeOrders(ctx, func(ctx context.Context, msg OrderMessage) error {
		mu.Lock()
		got = append(got, msg.MessageID)
		mu.Unlock()
		return nil
	}))

	require.NoError(t, b.PublishOrder(ctx, OrderMessage{MessageID: "m1"}))
	require.NoError(t, b.PublishOrder(ctx, OrderMessage{MessageID: "m2"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBrokerRetryReinjectsIntoPrimary(t *testing.T) {
	b := NewMemoryBroker(16, zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := make(chan OrderMessage, 1)
	require.NoError(t, b.ConsumeOrders(ctx, func(ctx context.Context, msg OrderMessage) error {
		delivered <- msg
		return nil
	}))

	require.NoError(t, b.PublishRetry(ctx, OrderMessage{MessageID: "r1", RetryCount: 1}, 20*time.Millisecond))

	select {
	case msg := <-delivered:
		require.Equal(t, "r1", msg.MessageID)
	case <-time.After(time.Second):
		t.Fatal("delayed message never re-injected")
	}
}

func TestMemoryBrokerDeadQueueSeparate(t *testing.T) {
	b := NewMemoryBroker(16, zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dead := make(chan OrderMessage, 1)
	require.NoError(t, b.ConsumeDead(ctx, func(ctx context.Context, msg OrderMessage) error {
		dead <- msg
		return nil
	}))
	require.NoError(t, b.ConsumeOrders(ctx, func(ctx context.Context, msg OrderMessage) error {
		t.Error("dead message delivered to primary consumer")
		return nil
	}))

	require.NoError(t, b.PublishDead(ctx, OrderMessage{MessageID: "d1"}))

	select {
	case msg := <-dead:
		require.Equal(t, "d1", msg.MessageID)
	case <-time.After(time.Second):
		t.Fatal("dead-letter message not delivered")
	}
}

func TestMemoryBrokerHandlerErrorDoesNotRedeliver(t *testing.T) {
	b := NewMemoryBroker(16, zerolog.Nop())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	deliveries := 0
	require.NoError(t, b.ConsumeOrders(ctx, func(ctx context.Context, msg OrderMessage) error {
		mu.Lock()
		deliveries++
		mu.Unlock()
		return errors.New("malformed")
	}))

	require.NoError(t, b.PublishOrder(ctx, OrderMessage{MessageID: "m1"}))

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, deliveries)
}

func TestMemoryBrokerClosedPublishFails(t *testing.T) {
	b := NewMemoryBroker(1, zerolog.Nop())
	require.NoError(t, b.Close())

	err := b.PublishOrder(context.Background(), OrderMessage{MessageID: "m1"})
	require.Error(t, err)
}
