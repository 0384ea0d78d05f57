package application

import (
	"context"

	"github.com/Exponent1/devops-order-system/internal/order/domain"
)

// ReservationResult mirrors the reservation service response.
type ReservationResult struct {
	OK            bool
	Remaining     int64
	ReservationID string
}

type ReservationClient interface {
	Reserve(ctx context.Context, item string, quantity int64, idempotencyKey string) (ReservationResult, error)
	Release(ctx context.Context, item string, quantity int64) error
}

type OrderRepository interface {
	Save(ctx context.Context, o domain.Order) error
	Get(ctx context.Context, id string) (domain.Order, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}
