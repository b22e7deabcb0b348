package resilience

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig sizes the worker pool.
type BulkheadConfig struct {
	// MaxConcurrent is the number of workers allowed to run at once.
	// Default: runtime.NumCPU()
	MaxConcurrent int

	// MaxWait is how long a query waits for a free slot. Zero rejects
	// immediately when every slot is taken.
	MaxWait time.Duration
}

// Bulkhead caps how many query workers run at the same time.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Every successful Acquire must be paired with one Release.
type Bulkhead struct {
	size    int
	maxWait time.Duration
	slots   *semaphore.Weighted

	mu    sync.Mutex
	stats BulkheadMetrics
}

// NewBulkhead creates a bulkhead with cfg.MaxConcurrent slots.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU()
	}
	return &Bulkhead{
		size:    cfg.MaxConcurrent,
		maxWait: cfg.MaxWait,
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Acquire takes a slot, waiting up to MaxWait. It returns ErrBulkheadFull
// when none frees up, or the context error if ctx ends first.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if b.slots.TryAcquire(1) {
		b.track(1)
		return nil
	}
	if b.maxWait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
		err := b.slots.Acquire(waitCtx, 1)
		cancel()
		if err == nil {
			b.track(1)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	b.mu.Lock()
	b.stats.Rejected++
	b.mu.Unlock()
	return ErrBulkheadFull
}

// Release frees a slot taken by Acquire. Releasing more slots than were
// acquired is a no-op.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	held := b.stats.Active > 0
	if held {
		b.stats.Active--
	}
	b.mu.Unlock()
	if held {
		b.slots.Release(1)
	}
}

func (b *Bulkhead) track(n int) {
	b.mu.Lock()
	b.stats.Active += n
	b.stats.MaxActive = max(b.stats.MaxActive, b.stats.Active)
	b.mu.Unlock()
}

// Execute runs op while holding a slot.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Metrics returns a snapshot of slot usage.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.stats
	m.MaxConcurrent = b.size
	m.Available = b.size - m.Active
	return m
}

// BulkheadMetrics reports slot usage. Rejected counts calls turned away with
// ErrBulkheadFull.
type BulkheadMetrics struct {
	Active        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Rejected      int64
}
