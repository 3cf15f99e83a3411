package seckill

import (
	"sync"
	"time"
)

// processedSet remembers recently applied message ids so duplicate deliveries
// can be acknowledged without touching the durable store. It is bounded and
// time-evicted, and purely an optimization: correctness comes from the order
// uniqueness constraint and conditional status transitions.
type processedSet struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	maxEntries int
	nowFunc    func() time.Time
}

func newProcessedSet(ttl time.Duration, maxEntries int) *processedSet {
	return &processedSet{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		maxEntries: maxEntries,
		nowFunc:    time.Now,
	}
}

// Seen reports whether id was marked within the ttl window.
func (s *processedSet) Seen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.entries[id]
	if !ok {
		return false
	}
	if s.nowFunc().Sub(at) > s.ttl {
		delete(s.entries, id)
		return false
	}
	return true
}

// Mark records id as processed, evicting expired entries when the set grows
// past its bound. If eviction is not enough the set is cleared outright;
// losing entries only costs an extra durable-store round trip.
func (s *processedSet) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id] = s.nowFunc()
	if len(s.entries) <= s.maxEntries {
		return
	}

	now := s.nowFunc()
	for k, at := range s.entries {
		if now.Sub(at) > s.ttl {
			delete(s.entries, k)
		}
	}
	if len(s.entries) > s.maxEntries {
		s.entries = map[string]time.Time{id: now}
	}
}

// Len returns the current number of tracked ids.
func (s *processedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
