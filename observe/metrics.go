package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheEvent labels one outcome of a cache lookup or write.
type CacheEvent string

const (
	CacheHit      CacheEvent = "hit"
	CacheMiss     CacheEvent = "miss"
	CacheWrite    CacheEvent = "write"
	CacheError    CacheEvent = "error"
	CacheDisabled CacheEvent = "disabled"
)

// Metrics records query and cache metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one query invocation.
	RecordExecution(ctx context.Context, meta QueryMeta, duration time.Duration, err error)

	// RecordCacheEvent counts one cache event for the query.
	RecordCacheEvent(ctx context.Context, meta QueryMeta, event CacheEvent)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	cacheEvents  metric.Int64Counter
}

// NewMetrics registers the datahub instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"query.exec.total",
		metric.WithDescription("Total number of query invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"query.exec.errors",
		metric.WithDescription("Total number of failed query invocations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"query.exec.duration_ms",
		metric.WithDescription("Query invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheEvents, err := meter.Int64Counter(
		"query.cache.events",
		metric.WithDescription("Disk cache events by outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		cacheEvents:  cacheEvents,
	}, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta QueryMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)
	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordCacheEvent(ctx context.Context, meta QueryMeta, event CacheEvent) {
	attrs := append(meta.attributes(), attribute.String("cache.event", string(event)))
	m.cacheEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type noopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordExecution(context.Context, QueryMeta, time.Duration, error) {}

func (noopMetrics) RecordCacheEvent(context.Context, QueryMeta, CacheEvent) {}
