package mq

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DelayScheduler holds messages until their ready-at time and then hands them
// to a deliver callback. It is a small priority queue driven by a single
// goroutine, independent of any broker's TTL mechanics.
type DelayScheduler struct {
	mu      sync.Mutex
	pending delayHeap
	wake    chan struct{}
	deliver func(OrderMessage)
	nowFunc func() time.Time
}

// NewDelayScheduler creates a scheduler delivering due messages to deliver.
// Run must be called before scheduled messages are dispatched.
func NewDelayScheduler(deliver func(OrderMessage)) *DelayScheduler {
	return &DelayScheduler{
		wake:    make(chan struct{}, 1),
		deliver: deliver,
		nowFunc: time.Now,
	}
}

// Schedule enqueues msg to be delivered after delay.
func (s *DelayScheduler) Schedule(msg OrderMessage, delay time.Duration) {
	s.mu.Lock()
	heap.Push(&s.pending, delayedMessage{msg: msg, readyAt: s.nowFunc().Add(delay)})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of messages still waiting.
func (s *DelayScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// Run dispatches due messages until ctx is done. Pending messages that are
// not yet due when ctx ends are dropped.
func (s *DelayScheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		var due []OrderMessage

		s.mu.Lock()
		now := s.nowFunc()
		for s.pending.Len() > 0 && !s.pending[0].readyAt.After(now) {
			due = append(due, heap.Pop(&s.pending).(delayedMessage).msg)
		}
		var next time.Duration
		if s.pending.Len() > 0 {
			next = s.pending[0].readyAt.Sub(now)
		} else {
			next = time.Hour
		}
		s.mu.Unlock()

		for _, msg := range due {
			s.deliver(msg)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

type delayedMessage struct {
	msg     OrderMessage
	readyAt time.Time
}

type delayHeap []delayedMessage

func (h delayHeap) Len() int            { return len(h) }
func (h delayHeap) Less(i, j int) bool  { return h[i].readyAt.Before(h[j].readyAt) }
func (h delayHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *delayHeap) Push(x any)         { *h = append(*h, x.(delayedMessage)) }
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
