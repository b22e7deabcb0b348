// Package exporters builds the OpenTelemetry exporters the datahub service can
// ship telemetry through.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrEndpointNotConfigured indicates the OTLP endpoint variables are unset.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

	// ErrUnknownExporter indicates an unsupported exporter name.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")
)

func otlpEndpoint(specific string) string {
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		return v
	}
	return os.Getenv(specific)
}

// NewTracingExporter creates a span exporter: stdout, otlp or none.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	case "otlp":
		if otlpEndpoint("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ErrEndpointNotConfigured)
		}
		return otlptracegrpc.New(ctx)
	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	default:
		return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
	}
}

// MetricsReader couples a reader with the HTTP handler that exposes it.
// Handler is nil for push-based exporters.
type MetricsReader struct {
	Reader  sdkmetric.Reader
	Handler http.Handler
}

// NewMetricsReader creates a metrics reader: stdout, otlp, prometheus or none.
// The prometheus reader registers into a private registry served by Handler.
func NewMetricsReader(ctx context.Context, name string) (MetricsReader, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return MetricsReader{}, fmt.Errorf("stdout metrics exporter: %w", err)
		}
		return MetricsReader{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	case "otlp":
		if otlpEndpoint("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") == "" {
			return MetricsReader{}, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ErrEndpointNotConfigured)
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return MetricsReader{}, fmt.Errorf("otlp metrics exporter: %w", err)
		}
		return MetricsReader{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	case "prometheus":
		reg := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(reg))
		if err != nil {
			return MetricsReader{}, fmt.Errorf("prometheus exporter: %w", err)
		}
		return MetricsReader{
			Reader:  exp,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}, nil

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return MetricsReader{}, err
		}
		return MetricsReader{Reader: sdkmetric.NewPeriodicReader(exp)}, nil

	default:
		return MetricsReader{}, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
	}
}
