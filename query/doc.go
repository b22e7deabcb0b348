// Package query defines how data queries are described, addressed and invoked.
//
// A query is a typed function registered under a module path. The Registry
// replaces any runtime lookup by name: modules and their queries are
// registered explicitly at startup, each with a Spec declaring its parameter
// order, kinds and defaults. Spec.Bind normalizes a call (positional and named
// arguments) into a Params map, which is the only form downstream components
// such as the cache key derivation ever see.
//
// Reserved parameter names (bypass-cache, force-refresh, output, ...) never
// reach a query function; ExtractOptions strips the cache-control ones and
// carries them on the context instead.
package query
