// Package health reports whether the DataHub server can serve queries.
//
// Checkers cover the pieces a query depends on: writable cache roots, an
// executable worker command and free worker slots. An Aggregator runs them
// in parallel and Mount exposes the results:
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register(health.NewCacheRootChecker("/var/cache/datahub"))
//	agg.Register(health.NewWorkerChecker("/usr/local/bin/datahub"))
//	health.Mount(router, agg)
//
// /healthz is liveness only; /readyz fails with 503 when any check is
// unhealthy; /health returns every result as JSON.
package health
