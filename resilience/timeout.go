package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a worker call when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: DefaultTimeout
	Timeout time.Duration
}

// Timeout bounds the running time of an operation.
//
// Contract:
//   - The operation runs in its own goroutine with a derived context that is
//     cancelled at the deadline. Operations should honor ctx; one that does
//     not keeps running after Execute has returned.
//   - Cancellation of the parent context is reported as the parent's error,
//     not as ErrTimeout.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Timeout{config: config}
}

// Execute runs op with the configured deadline.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		// An operation that gave up because of the deadline is a timeout.
		if err != nil && ctx.Err() != nil {
			return t.expired(parent, ctx)
		}
		return err
	case <-ctx.Done():
		return t.expired(parent, ctx)
	}
}

func (t *Timeout) expired(parent, ctx context.Context) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimeout, t.config.Timeout)
	}
	return ctx.Err()
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// ExecuteWithTimeout runs op once under timeout.
func ExecuteWithTimeout(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	return NewTimeout(TimeoutConfig{Timeout: timeout}).Execute(ctx, op)
}
