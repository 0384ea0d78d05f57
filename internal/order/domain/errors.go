package domain

import "errors"

var (
	// ErrInvalidRequest means a malformed order request; no side effects.
	ErrInvalidRequest = errors.New("item and positive quantity required")

	// ErrInsufficientStock is a business outcome, not a system fault.
	// Terminal; nothing to compensate.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrStoreUnavailable is a transient infrastructure fault. When it hits
	// after a successful reservation the stock has already been released.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAmbiguousOutcome means the reservation call failed in a way that
	// leaves the ledger mutation unknown even after keyed retries.
	ErrAmbiguousOutcome = errors.New("reservation outcome unknown")

	// ErrCompensationFailed means reserved stock could not be released after
	// a failed order insert. The discrepancy is logged for reconciliation.
	ErrCompensationFailed = errors.New("stock release failed")

	// ErrNotFound means no order with the given id exists.
	ErrNotFound = errors.New("order not found")
)
