package gate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same semantics as RedisStore.
// It backs local development mode and the concurrency tests.
type MemoryStore struct {
	mu      sync.Mutex
	stock   map[int64]int
	ledger  map[int64]map[int64]int
	status  map[int64]statusEntry
	alerts  []string
	nowFunc func() time.Time
}

type statusEntry struct {
	status    int
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stock:   make(map[int64]int),
		ledger:  make(map[int64]map[int64]int),
		status:  make(map[int64]statusEntry),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) TryAdmit(ctx context.Context, voucherID, userID int64, limit int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stock[voucherID] <= 0 {
		return StockExhausted, nil
	}
	if s.ledger[voucherID][userID] >= limit {
		return LimitExceeded, nil
	}

	s.stock[voucherID]--
	if s.ledger[voucherID] == nil {
		s.ledger[voucherID] = make(map[int64]int)
	}
	s.ledger[voucherID][userID]++
	return Admitted, nil
}

func (s *MemoryStore) Rollback(ctx context.Context, voucherID, userID int64) (RollbackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bought := s.ledger[voucherID][userID]
	if bought <= 0 {
		return NoOp, nil
	}
	if bought == 1 {
		delete(s.ledger[voucherID], userID)
	} else {
		s.ledger[voucherID][userID] = bought - 1
	}
	s.stock[voucherID]++
	return Rolled, nil
}

func (s *MemoryStore) InitStock(ctx context.Context, voucherID int64, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stock[voucherID] = stock
	delete(s.ledger, voucherID)
	return nil
}

func (s *MemoryStore) Stock(ctx context.Context, voucherID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[voucherID], nil
}

func (s *MemoryStore) BoughtCount(ctx context.Context, voucherID, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger[voucherID][userID], nil
}

func (s *MemoryStore) SetOrderStatus(ctx context.Context, orderID int64, status int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status[orderID] = statusEntry{status: status, expiresAt: s.nowFunc().Add(ttl)}
	return nil
}

func (s *MemoryStore) OrderStatus(ctx context.Context, orderID int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.status[orderID]
	if !ok || s.nowFunc().After(entry.expiresAt) {
		delete(s.status, orderID)
		return 0, false, nil
	}
	return entry.status, true, nil
}

func (s *MemoryStore) CleanActivity(ctx context.Context, voucherID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.stock, voucherID)
	delete(s.ledger, voucherID)
	return nil
}

// AppendAlertLog records an operator alert entry, newest first.
func (s *MemoryStore) AppendAlertLog(ctx context.Context, entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append([]string{entry}, s.alerts...)
	return nil
}

// AlertLogs returns up to n of the most recent alert entries.
func (s *MemoryStore) AlertLogs(ctx context.Context, n int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int64(len(s.alerts)) < n {
		n = int64(len(s.alerts))
	}
	out := make([]string, n)
	copy(out, s.alerts[:n])
	return out, nil
}
