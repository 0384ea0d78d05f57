package ledger

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("item not found")
	ErrInvalidInput = errors.New("item and positive quantity required")
)

// Result is the outcome of one reservation attempt. Remaining reflects the
// stock after a successful decrement, or the untouched quantity on refusal.
type Result struct {
	OK        bool
	Remaining int64
}

// Ledger is the authoritative per-item stock counter. TryReserve performs
// lazy default initialization, the sufficiency check and the decrement as a
// single atomic step; no caller may observe an intermediate state.
type Ledger interface {
	TryReserve(ctx context.Context, item string, quantity int64) (Result, error)
	Release(ctx context.Context, item string, quantity int64) error
	GetStock(ctx context.Context, item string) (int64, error)
}
