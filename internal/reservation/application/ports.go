package application

import (
	"context"

	"github.com/Exponent1/devops-order-system/pkg/idempotency"
)

// KeyStore tracks idempotency keys and their terminal outcomes. Acquire
// either hands the key to the caller, replays a cached outcome, or reports
// that another call holding the key is still in flight.
type KeyStore interface {
	Acquire(ctx context.Context, key string) (*idempotency.Outcome, bool, error)
	Complete(ctx context.Context, key string, out idempotency.Outcome) error
	Forget(ctx context.Context, key string) error
}
