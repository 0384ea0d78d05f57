package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned when another call holding the same key has not
// reached a terminal outcome yet.
var ErrInFlight = errors.New("idempotency: request in flight")

const inFlightMarker = "__in_flight__"

// Outcome is the cached terminal result of a keyed reservation. Replays of
// the same key return it verbatim instead of mutating the ledger again.
type Outcome struct {
	OK            bool   `json:"ok"`
	Remaining     int64  `json:"remaining"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// Store keeps one record per caller-supplied idempotency key, expiring after
// the retention window. An in-flight marker claimed with SETNX guarantees at
// most one ledger mutation per key even under concurrent use of that key.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) key(k string) string {
	return fmt.Sprintf("idem:%s", k)
}

// Acquire claims the key. It returns the cached outcome when one exists,
// otherwise (nil, true, nil) when the caller now owns the key, or
// ErrInFlight when another owner has not recorded an outcome yet.
func (s *Store) Acquire(ctx context.Context, key string) (*Outcome, bool, error) {
	set, err := s.rdb.SetNX(ctx, s.key(key), inFlightMarker, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if set {
		return nil, true, nil
	}

	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// record expired between SETNX and GET
		return nil, false, ErrInFlight
	}
	if err != nil {
		return nil, false, err
	}
	if val == inFlightMarker {
		return nil, false, ErrInFlight
	}

	var out Outcome
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, fmt.Errorf("idempotency record corrupt for key %q: %w", key, err)
	}
	return &out, false, nil
}

// Complete records the terminal outcome under the key, replacing the
// in-flight marker.
func (s *Store) Complete(ctx context.Context, key string, out Outcome) error {
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(key), b, s.ttl).Err()
}

// Forget drops the claim after a non-terminal failure so a retry with the
// same key can attempt the reservation again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
