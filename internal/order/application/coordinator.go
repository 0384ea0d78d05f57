package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Exponent1/devops-order-system/internal/order/domain"
)

// Coordinator runs the order flow: validate, reserve stock, persist the
// order, publish the event. Steps after a successful reservation own the
// compensation duty: a failed insert releases the reserved stock, a failed
// publish does not (the order is real once the row exists; the event is
// redelivered later).
type Coordinator struct {
	log         *slog.Logger
	reservation ReservationClient
	orders      OrderRepository
	publisher   Publisher
	retries     int
}

func NewCoordinator(log *slog.Logger, reservation ReservationClient, orders OrderRepository, publisher Publisher, retries int) *Coordinator {
	if retries < 0 {
		retries = 0
	}
	return &Coordinator{
		log:         log,
		reservation: reservation,
		orders:      orders,
		publisher:   publisher,
		retries:     retries,
	}
}

func (c *Coordinator) CreateOrder(ctx context.Context, item string, quantity int64) (domain.Order, error) {
	if item == "" || quantity <= 0 {
		return domain.Order{}, domain.ErrInvalidRequest
	}

	// one fresh key per order attempt; transport retries reuse it so a
	// timed-out reserve cannot decrement twice
	key := uuid.NewString()
	res, err := c.reserveWithRetry(ctx, item, quantity, key)
	if err != nil {
		return domain.Order{}, err
	}
	if !res.OK {
		c.log.Info("order rejected", "item", item, "quantity", quantity, "remaining", res.Remaining)
		return domain.Order{}, domain.ErrInsufficientStock
	}

	o := domain.NewOrder(item, quantity)
	if err := c.orders.Save(ctx, o); err != nil {
		return domain.Order{}, c.compensate(ctx, o, res.ReservationID, err)
	}

	ev := domain.NewEvent(domain.EventOrderCreated, o)
	if err := c.publisher.Publish(ctx, ev); err != nil {
		// reservation and order stand; surfaced as delivery lag only
		c.log.Error("event delivery lagging", "event_id", ev.EventID, "order_id", o.ID, "err", err)
	}

	c.log.Info("order created", "order_id", o.ID, "item", item, "quantity", quantity, "remaining", res.Remaining)
	return o, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return c.orders.Get(ctx, id)
}

func (c *Coordinator) reserveWithRetry(ctx context.Context, item string, quantity int64, key string) (ReservationResult, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		res, err := c.reservation.Reserve(ctx, item, quantity, key)
		if err == nil {
			return res, nil
		}
		lastErr = err
		c.log.Warn("reserve attempt failed", "item", item, "attempt", attempt+1, "err", err)
		if ctx.Err() != nil {
			break
		}
	}
	return ReservationResult{}, fmt.Errorf("%w: %v", domain.ErrAmbiguousOutcome, lastErr)
}

// compensate releases the stock held for an order whose insert failed. A
// failed release is the one fatal case: it leaves a known discrepancy that
// is logged for reconciliation instead of being swallowed.
func (c *Coordinator) compensate(ctx context.Context, o domain.Order, reservationID string, cause error) error {
	c.log.Error("order insert failed, releasing stock", "order_id", o.ID, "err", cause)

	if err := c.reservation.Release(ctx, o.Item, o.Quantity); err != nil {
		c.log.Error("stock release failed, reconciliation required",
			"order_id", o.ID, "item", o.Item, "quantity", o.Quantity,
			"reservation_id", reservationID, "err", err)
		return fmt.Errorf("%w: %v (insert: %v)", domain.ErrCompensationFailed, err, cause)
	}

	ev := domain.NewEvent(domain.EventOrderFailed, o)
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.log.Error("event delivery lagging", "event_id", ev.EventID, "order_id", o.ID, "err", err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, cause)
}
