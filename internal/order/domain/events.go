package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventOrderCreated EventType = "order_created"
	EventOrderFailed  EventType = "order_failed"
)

// Event is delivered at least once; consumers de-duplicate by EventID.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	OrderID   string    `json:"order_id"`
	Item      string    `json:"item"`
	Quantity  int64     `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEvent(t EventType, o Order) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      t,
		OrderID:   o.ID,
		Item:      o.Item,
		Quantity:  o.Quantity,
		Timestamp: time.Now().UTC(),
	}
}
