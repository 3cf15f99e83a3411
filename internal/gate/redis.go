package gate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Key layout, one stock counter and one purchase ledger hash per voucher.
func stockKey(voucherID int64) string {
	return "seckill:stock:" + strconv.FormatInt(voucherID, 10)
}

func orderKey(voucherID int64) string {
	return "seckill:order:" + strconv.FormatInt(voucherID, 10)
}

func statusKey(orderID int64) string {
	return "order:status:" + strconv.FormatInt(orderID, 10)
}

const alertLogKey = "seckill:alert:log"

// admitScript checks stock and the user's ledger and mutates both or neither.
// KEYS[1] stock counter, KEYS[2] ledger hash.
// ARGV[1] voucher id, ARGV[2] user id, ARGV[3] per-user limit.
// Returns 0 admitted, 1 stock exhausted, 2 limit exceeded.
var admitScript = redis.NewScript(`
local stock = tonumber(redis.call('GET', KEYS[1]))
if stock == nil or stock <= 0 then
  return 1
end
local bought = tonumber(redis.call('HGET', KEYS[2], ARGV[2]))
if bought == nil then
  bought = 0
end
if bought >= tonumber(ARGV[3]) then
  return 2
end
redis.call('DECR', KEYS[1])
redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
return 0
`)

// rollbackScript returns one unit of stock and ledger credit. The stock
// counter is only incremented when the user actually held an admission, so
// duplicate rollbacks cannot push stock above its initial value.
// Returns 0 rolled, 1 no-op.
var rollbackScript = redis.NewScript(`
local bought = tonumber(redis.call('HGET', KEYS[2], ARGV[2]))
if bought == nil or bought <= 0 then
  return 1
end
if bought == 1 then
  redis.call('HDEL', KEYS[2], ARGV[2])
else
  redis.call('HINCRBY', KEYS[2], ARGV[2], -1)
end
redis.call('INCR', KEYS[1])
return 0
`)

// RedisStore implements Store on a Redis server. The admission path is a
// single server-side Lua evaluation, which serializes all mutations for a
// voucher without any client-side locking.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) TryAdmit(ctx context.Context, voucherID, userID int64, limit int) (Result, error) {
	code, err := admitScript.Run(ctx, s.client,
		[]string{stockKey(voucherID), orderKey(voucherID)},
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
		strconv.Itoa(limit),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("run admit script: %w", err)
	}

	switch code {
	case 0:
		return Admitted, nil
	case 1:
		return StockExhausted, nil
	case 2:
		return LimitExceeded, nil
	default:
		return 0, fmt.Errorf("admit script returned unexpected code %d", code)
	}
}

func (s *RedisStore) Rollback(ctx context.Context, voucherID, userID int64) (RollbackResult, error) {
	code, err := rollbackScript.Run(ctx, s.client,
		[]string{stockKey(voucherID), orderKey(voucherID)},
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("run rollback script: %w", err)
	}

	if code == 1 {
		return NoOp, nil
	}
	return Rolled, nil
}

func (s *RedisStore) InitStock(ctx context.Context, voucherID int64, stock int) error {
	// Stored as a string so the scripts can tonumber() it.
	if err := s.client.Set(ctx, stockKey(voucherID), strconv.Itoa(stock), 0).Err(); err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	if err := s.client.Del(ctx, orderKey(voucherID)).Err(); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

func (s *RedisStore) Stock(ctx context.Context, voucherID int64) (int, error) {
	v, err := s.client.Get(ctx, stockKey(voucherID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get stock: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse stock %q: %w", v, err)
	}
	return n, nil
}

func (s *RedisStore) BoughtCount(ctx context.Context, voucherID, userID int64) (int, error) {
	v, err := s.client.HGet(ctx, orderKey(voucherID), strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("get bought count: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse bought count %q: %w", v, err)
	}
	return n, nil
}

func (s *RedisStore) SetOrderStatus(ctx context.Context, orderID int64, status int, ttl time.Duration) error {
	if err := s.client.Set(ctx, statusKey(orderID), strconv.Itoa(status), ttl).Err(); err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	return nil
}

func (s *RedisStore) OrderStatus(ctx context.Context, orderID int64) (int, bool, error) {
	v, err := s.client.Get(ctx, statusKey(orderID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get order status: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("parse order status %q: %w", v, err)
	}
	return n, true, nil
}

func (s *RedisStore) CleanActivity(ctx context.Context, voucherID int64) error {
	if err := s.client.Del(ctx, stockKey(voucherID), orderKey(voucherID)).Err(); err != nil {
		return fmt.Errorf("clean activity: %w", err)
	}
	return nil
}

// AppendAlertLog records an operator alert entry, newest first.
func (s *RedisStore) AppendAlertLog(ctx context.Context, entry string) error {
	if err := s.client.LPush(ctx, alertLogKey, entry).Err(); err != nil {
		return fmt.Errorf("append alert log: %w", err)
	}
	return nil
}

// AlertLogs returns up to n of the most recent alert entries.
func (s *RedisStore) AlertLogs(ctx context.Context, n int64) ([]string, error) {
	entries, err := s.client.LRange(ctx, alertLogKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read alert log: %w", err)
	}
	return entries, nil
}
