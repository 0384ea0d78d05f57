package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const StatusCreated OrderStatus = "created"

// Order exists only if its stock reservation was durably applied. Rows are
// append-only; there is no in-place mutation after creation.
type Order struct {
	ID        string
	Item      string
	Quantity  int64
	Status    OrderStatus
	CreatedAt time.Time
}

func NewOrder(item string, quantity int64) Order {
	return Order{
		ID:        uuid.NewString(),
		Item:      item,
		Quantity:  quantity,
		Status:    StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
}
