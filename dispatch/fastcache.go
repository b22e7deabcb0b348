package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/datahub/cache"
	"github.com/jonwraymond/datahub/output"
	"github.com/jonwraymond/datahub/query"
)

// Date range parameters of fast-cache lookups.
const (
	ParamStartDate = "start_date"
	ParamEndDate   = "end_date"
)

// ErrInvalidRange indicates a fast-cache range that ends before it starts.
var ErrInvalidRange = errors.New("dispatch: start_date is after end_date")

// FastCache resolves where the cache entry of a date-ranged call lives, so a
// co-located client can read the file instead of receiving the payload.
//
// Contract:
//   - No I/O: the path is derived, never checked for existence.
//   - Agreement: the path equals the one the module's memoizer writes for
//     the same call, because both bind with query.Spec.Bind and derive with
//     the same cache.Keyer.
type FastCache struct {
	registry *query.Registry
	keyer    cache.Keyer
}

// NewFastCache creates a resolver. A nil keyer uses cache.DefaultKeyer.
func NewFastCache(reg *query.Registry, keyer cache.Keyer) *FastCache {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &FastCache{registry: reg, keyer: keyer}
}

// Path returns the cache entry path for a start/end call of the query.
func (fc *FastCache) Path(module, name, start, end string) (string, error) {
	mod, err := fc.registry.Module(module)
	if err != nil {
		return "", err
	}
	if mod.CacheRoot == "" {
		return "", fmt.Errorf("%w: module %q", cache.ErrNoRoot, mod.Path)
	}
	q, err := fc.registry.Lookup(mod.Path, name)
	if err != nil {
		return "", err
	}

	named := query.Params{}
	for k, v := range map[string]string{ParamStartDate: start, ParamEndDate: end} {
		if v = strings.TrimSpace(v); v != "" {
			named[k] = v
		}
	}
	bound, err := q.Spec.Bind(nil, named)
	if err != nil {
		return "", err
	}
	from, errFrom := query.ParseTime(bound[ParamStartDate])
	to, errTo := query.ParseTime(bound[ParamEndDate])
	if errFrom == nil && errTo == nil && from.After(to) {
		return "", fmt.Errorf("%w: %s > %s", ErrInvalidRange, bound[ParamStartDate], bound[ParamEndDate])
	}
	return fc.keyer.Path(mod.CacheRoot, mod.Stem(), q.Spec.Name, bound), nil
}

// Resolve returns "fast_cache://<path>", or "" when the path cannot be
// derived for any reason.
func (fc *FastCache) Resolve(module, name, start, end string) string {
	path, err := fc.Path(module, name, start, end)
	if err != nil {
		return ""
	}
	return output.FastCachePrefix + path
}
