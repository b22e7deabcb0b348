package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Reserved parameter names understood at the invocation boundary.
const (
	ParamBypassCache  = "bypass-cache"
	ParamForceRefresh = "force-refresh"
	ParamOutput       = "output"
	ParamQueryID      = "qid"

	// Legacy spellings of the cache-control options.
	ParamNoCache     = "nocache"
	ParamUpdateCache = "updatecache"
)

// Params maps parameter names to their string values.
type Params map[string]string

// Clone returns a shallow copy of p. A nil map clones to an empty map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Names returns the parameter names sorted lexicographically.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Options are the cache-control flags of a single call.
type Options struct {
	// BypassCache serves the call live without reading or writing the cache,
	// unless ForceRefresh is also set.
	BypassCache bool

	// ForceRefresh recomputes the result and overwrites any cached entry.
	ForceRefresh bool
}

// Merge returns the union of both option sets.
func (o Options) Merge(other Options) Options {
	return Options{
		BypassCache:  o.BypassCache || other.BypassCache,
		ForceRefresh: o.ForceRefresh || other.ForceRefresh,
	}
}

// ExtractOptions removes the cache-control parameters from p and returns the
// remaining parameters together with the parsed options. p is not modified.
// A present flag with an empty value counts as true.
func ExtractOptions(p Params) (Params, Options, error) {
	rest := p.Clone()
	var opts Options
	for _, spec := range []struct {
		name string
		dst  *bool
	}{
		{ParamBypassCache, &opts.BypassCache},
		{ParamNoCache, &opts.BypassCache},
		{ParamForceRefresh, &opts.ForceRefresh},
		{ParamUpdateCache, &opts.ForceRefresh},
	} {
		raw, ok := rest[spec.name]
		if !ok {
			continue
		}
		delete(rest, spec.name)
		v, err := parseFlag(raw)
		if err != nil {
			return nil, Options{}, fmt.Errorf("%w: %s=%q", ErrInvalidParam, spec.name, raw)
		}
		*spec.dst = *spec.dst || v
	}
	return rest, opts, nil
}

func parseFlag(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

type optionsKey struct{}

// WithOptions returns a context carrying the given cache options.
func WithOptions(ctx context.Context, opts Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

// OptionsFromContext returns the cache options on ctx, or the zero Options.
func OptionsFromContext(ctx context.Context) Options {
	opts, _ := ctx.Value(optionsKey{}).(Options)
	return opts
}
