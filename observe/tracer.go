package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// QueryMeta identifies a query invocation for telemetry purposes.
type QueryMeta struct {
	Module    string // module path, e.g. "example/example"
	Name      string // query name
	RequestID string // per-invocation id (optional)
}

// QueryID returns "<module>:<name>".
func (m QueryMeta) QueryID() string {
	return m.Module + ":" + m.Name
}

// SpanName returns the deterministic span name: query.exec.<module>.<name>.
func (m QueryMeta) SpanName() string {
	return "query.exec." + m.Module + "." + m.Name
}

func (m QueryMeta) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("query.id", m.QueryID()),
		attribute.String("query.module", m.Module),
		attribute.String("query.name", m.Name),
	}
}

// Tracer wraps OpenTelemetry tracing with query-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("query.error", false))
	if meta.RequestID != "" {
		attrs = append(attrs, attribute.String("request.id", meta.RequestID))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("query.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer producing non-recording spans.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta QueryMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
