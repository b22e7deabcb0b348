package observe

import (
	"context"
	"time"
)

// ExecuteFunc runs one query invocation and returns its encoded result.
type ExecuteFunc func(ctx context.Context, meta QueryMeta) ([]byte, error)

// Middleware wraps query execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Errors: errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: payloads are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Wrap wraps fn with telemetry.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta QueryMeta) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		payload, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, meta, duration, err)

		log := m.logger.WithQuery(meta)
		fields := []Field{F("duration_ms", float64(duration.Milliseconds()))}
		if err != nil {
			log.Error(ctx, "query failed", append(fields, F("error", err))...)
		} else {
			log.Info(ctx, "query completed", append(fields, F("bytes", len(payload)))...)
		}
		return payload, err
	}
}

// MiddlewareFromObserver builds a Middleware from an Observer's parts.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
