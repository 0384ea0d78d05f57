package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "stock:"

// reserveScript initializes the counter to the configured default on first
// touch, then checks and decrements, all inside one script execution so
// concurrent callers on the same item are serialized by Redis.
//
// KEYS[1]: stock counter key
// ARGV[1]: requested quantity
// ARGV[2]: default stock for never-seen items
var reserveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  cur = tonumber(ARGV[2])
  redis.call('SET', KEYS[1], cur)
else
  cur = tonumber(cur)
end
local qty = tonumber(ARGV[1])
if cur < qty then
  return {0, cur}
end
return {1, redis.call('DECRBY', KEYS[1], qty)}
`)

// RedisLedger backs the stock counters with Redis. The check-and-decrement
// runs as a Lua script, so the atomicity guarantee holds across processes.
type RedisLedger struct {
	rdb          *redis.Client
	defaultStock int64
}

func NewRedisLedger(rdb *redis.Client, defaultStock int64) *RedisLedger {
	return &RedisLedger{rdb: rdb, defaultStock: defaultStock}
}

func (l *RedisLedger) TryReserve(ctx context.Context, item string, quantity int64) (Result, error) {
	if item == "" || quantity <= 0 {
		return Result{}, ErrInvalidInput
	}

	raw, err := reserveScript.Run(ctx, l.rdb, []string{stockKeyPrefix + item}, quantity, l.defaultStock).Result()
	if err != nil {
		return Result{}, fmt.Errorf("reserve script: %w", err)
	}

	vals, ok := raw.([]interface{})
	if !ok || len(vals) != 2 {
		return Result{}, fmt.Errorf("unexpected reserve script result: %T", raw)
	}
	code, ok1 := vals[0].(int64)
	remaining, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("unexpected reserve script values: %v", vals)
	}

	return Result{OK: code == 1, Remaining: remaining}, nil
}

func (l *RedisLedger) Release(ctx context.Context, item string, quantity int64) error {
	if item == "" || quantity <= 0 {
		return ErrInvalidInput
	}
	if err := l.rdb.IncrBy(ctx, stockKeyPrefix+item, quantity).Err(); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	return nil
}

func (l *RedisLedger) GetStock(ctx context.Context, item string) (int64, error) {
	if item == "" {
		return 0, ErrInvalidInput
	}
	n, err := l.rdb.Get(ctx, stockKeyPrefix+item).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return n, nil
}
