package resilience

import "errors"

// Sentinel errors for guarded worker calls.
var (
	// ErrBulkheadFull is returned when no worker slot frees up in time.
	ErrBulkheadFull = errors.New("resilience: worker slots exhausted")

	// ErrTimeout is returned when a call outlives its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)
