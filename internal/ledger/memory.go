package ledger

import (
	"context"
	"sync"
)

// MemoryLedger keeps stock counters in a mutex-guarded map. It satisfies the
// same contract as RedisLedger and is meant for single-node runs and tests.
type MemoryLedger struct {
	mu           sync.RWMutex
	defaultStock int64
	items        map[string]int64
}

func NewMemoryLedger(defaultStock int64) *MemoryLedger {
	return &MemoryLedger{
		defaultStock: defaultStock,
		items:        make(map[string]int64),
	}
}

func (l *MemoryLedger) TryReserve(_ context.Context, item string, quantity int64) (Result, error) {
	if item == "" || quantity <= 0 {
		return Result{}, ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.items[item]
	if !ok {
		// first touch initializes the counter even when the reservation
		// is then refused, matching the Redis script
		cur = l.defaultStock
		l.items[item] = cur
	}
	if cur < quantity {
		return Result{OK: false, Remaining: cur}, nil
	}
	l.items[item] = cur - quantity
	return Result{OK: true, Remaining: cur - quantity}, nil
}

// Release adds quantity back. It assumes a prior reservation for the item;
// a release on a never-reserved item starts the counter from zero, matching
// INCRBY on a missing key.
func (l *MemoryLedger) Release(_ context.Context, item string, quantity int64) error {
	if item == "" || quantity <= 0 {
		return ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.items[item] += quantity
	return nil
}

func (l *MemoryLedger) GetStock(_ context.Context, item string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cur, ok := l.items[item]
	if !ok {
		return 0, ErrNotFound
	}
	return cur, nil
}
