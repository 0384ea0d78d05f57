package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Exponent1/devops-order-system/internal/ledger"
	"github.com/Exponent1/devops-order-system/pkg/idempotency"
)

// Result is the reservation service response. Insufficient stock is a valid
// business result, not an error.
type Result struct {
	OK            bool
	Remaining     int64
	ReservationID string
}

type Service struct {
	log  *slog.Logger
	led  ledger.Ledger
	keys KeyStore
}

func NewService(log *slog.Logger, led ledger.Ledger, keys KeyStore) *Service {
	return &Service{log: log, led: led, keys: keys}
}

// Reserve attempts the atomic decrement. With an idempotency key, the ledger
// is mutated at most once per key; replays return the recorded outcome.
// Without a key the caller owns retry safety.
func (s *Service) Reserve(ctx context.Context, item string, quantity int64, key string) (Result, error) {
	if key == "" {
		return s.reserve(ctx, item, quantity)
	}

	cached, acquired, err := s.keys.Acquire(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		s.log.Info("idempotent replay", "key", key, "item", item)
		return Result{OK: cached.OK, Remaining: cached.Remaining, ReservationID: cached.ReservationID}, nil
	}

	res, err := s.reserve(ctx, item, quantity)
	if err != nil {
		// no terminal outcome; drop the claim so a keyed retry can run
		if ferr := s.keys.Forget(ctx, key); ferr != nil {
			s.log.Error("idempotency claim cleanup failed", "key", key, "err", ferr)
		}
		return Result{}, err
	}

	out := idempotency.Outcome{OK: res.OK, Remaining: res.Remaining, ReservationID: res.ReservationID}
	if err := s.keys.Complete(ctx, key, out); err != nil {
		s.log.Error("idempotency record failed", "key", key, "err", err)
	}
	return res, nil
}

func (s *Service) reserve(ctx context.Context, item string, quantity int64) (Result, error) {
	r, err := s.led.TryReserve(ctx, item, quantity)
	if err != nil {
		return Result{}, err
	}
	res := Result{OK: r.OK, Remaining: r.Remaining}
	if r.OK {
		res.ReservationID = uuid.NewString()
		s.log.Info("stock reserved", "item", item, "quantity", quantity, "remaining", r.Remaining)
	} else {
		s.log.Info("reservation refused", "item", item, "quantity", quantity, "remaining", r.Remaining)
	}
	return res, nil
}

// Release returns previously reserved stock. It backs the coordinator's
// compensation path and must stay callable when the original outcome is
// uncertain.
func (s *Service) Release(ctx context.Context, item string, quantity int64) error {
	if err := s.led.Release(ctx, item, quantity); err != nil {
		return err
	}
	s.log.Info("stock released", "item", item, "quantity", quantity)
	return nil
}

// Inspect reads current stock without initializing the item.
func (s *Service) Inspect(ctx context.Context, item string) (int64, error) {
	return s.led.GetStock(ctx, item)
}
