package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

type userVoucher struct {
	userID    int64
	voucherID int64
}

// MemoryStore is an in-process Store with the same uniqueness and
// compare-and-swap semantics as the Postgres implementation. Used by local
// mode and the pipeline tests.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[int64]*Order
	byPair map[userVoucher]int64

	// FailCreates makes the next n CreateIfAbsent calls fail, for
	// exercising the retry and dead-letter paths in tests.
	FailCreates int
	failErr     error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[int64]*Order),
		byPair: make(map[userVoucher]int64),
	}
}

// FailNextCreates arranges for the next n CreateIfAbsent calls to return err.
func (s *MemoryStore) FailNextCreates(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailCreates = n
	s.failErr = err
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, o *Order) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreates > 0 {
		s.FailCreates--
		return nil, s.failErr
	}

	key := userVoucher{userID: o.UserID, voucherID: o.VoucherID}
	if id, ok := s.byPair[key]; ok {
		existing := *s.byID[id]
		return &existing, nil
	}

	stored := *o
	stored.Status = StatusProcessing
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.byID[stored.ID] = &stored
	s.byPair[key] = stored.ID

	out := stored
	return &out, nil
}

func (s *MemoryStore) Transition(ctx context.Context, orderID int64, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[orderID]
	if !ok {
		return nil, nil
	}
	out := *o
	return &out, nil
}

func (s *MemoryStore) FindByUserVoucher(ctx context.Context, userID, voucherID int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[userVoucher{userID: userID, voucherID: voucherID}]
	if !ok {
		return nil, nil
	}
	out := *s.byID[id]
	return &out, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []Order
	for _, o := range s.byID {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) CountByVoucher(ctx context.Context, voucherID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, o := range s.byID {
		if o.VoucherID == voucherID {
			n++
		}
	}
	return n, nil
}
