// Package observe provides the observability primitives of the datahub
// service: a JSON structured logger, OpenTelemetry tracing and metrics for
// query invocations, and counters for disk cache events.
//
// It performs no I/O beyond exporter setup. The process entry point builds an
// Observer from configuration and hands its parts to the dispatcher, the
// cache memoizer and the HTTP server.
package observe
