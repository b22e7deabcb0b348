// Package resilience guards worker calls.
//
// Timeout bounds the running time of a single query worker; Bulkhead caps
// how many workers run at once when isolation.max_concurrent is set.
//
//	t := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: time.Minute})
//	err := t.Execute(ctx, func(ctx context.Context) error {
//	    return runWorker(ctx)
//	})
package resilience
