package redelivery

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
)

// Pending is an event whose first publish failed and that is waiting to be
// delivered to the broker. Payload is the event JSON exactly as the first
// attempt would have sent it, so redelivery preserves the event id and the
// consumer-side de-duplication contract.
type Pending struct {
	ID         int64
	EventID    string
	Type       string
	Payload    []byte
	CreatedAt  time.Time
	RetryCount int
}
