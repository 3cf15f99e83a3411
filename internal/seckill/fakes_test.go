package seckill

import (
	"context"
	"sync"
	"time"

	"github.com/Fyongquan/new-top-binfa/internal/gate"
	"github.com/Fyongquan/new-top-binfa/internal/mq"
)

type retryCall struct {
	msg   mq.OrderMessage
	delay time.Duration
}

// fakeProducer records publishes instead of queueing them.
type fakeProducer struct {
	mu      sync.Mutex
	orders  []mq.OrderMessage
	retries []retryCall
	dead    []mq.OrderMessage

	failPublishOrder error
}

func (p *fakeProducer) PublishOrder(ctx context.Context, msg mq.OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failPublishOrder != nil {
		return p.failPublishOrder
	}
	p.orders = append(p.orders, msg)
	return nil
}

func (p *fakeProducer) PublishRetry(ctx context.Context, msg mq.OrderMessage, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = append(p.retries, retryCall{msg: msg, delay: delay})
	return nil
}

func (p *fakeProducer) PublishDead(ctx context.Context, msg mq.OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = append(p.dead, msg)
	return nil
}

// failingGate wraps a gate.Store and fails admissions on demand.
type failingGate struct {
	gate.Store
	admitErr error
}

func (g *failingGate) TryAdmit(ctx context.Context, voucherID, userID int64, limit int) (gate.Result, error) {
	if g.admitErr != nil {
		return 0, g.admitErr
	}
	return g.Store.TryAdmit(ctx, voucherID, userID, limit)
}

// fakeAlerter records emitted alerts.
type fakeAlerter struct {
	mu     sync.Mutex
	alerts []mq.OrderMessage
}

func (a *fakeAlerter) OrderFailed(ctx context.Context, msg mq.OrderMessage, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, msg)
}

func (a *fakeAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}
