package health

import (
	"context"
	"fmt"
	"os"
	"slices"
)

// CacheRootChecker verifies that every module cache root accepts writes. A
// root that cannot be written turns every cache write of its module into a
// logged failure, so the check is unhealthy rather than degraded.
type CacheRootChecker struct {
	roots []string
}

var _ Checker = (*CacheRootChecker)(nil)

// NewCacheRootChecker creates a checker for the given roots. Empty and
// duplicate roots are ignored.
func NewCacheRootChecker(roots ...string) *CacheRootChecker {
	var uniq []string
	for _, r := range roots {
		if r != "" && !slices.Contains(uniq, r) {
			uniq = append(uniq, r)
		}
	}
	slices.Sort(uniq)
	return &CacheRootChecker{roots: uniq}
}

func (c *CacheRootChecker) Name() string { return "cache_roots" }

// Check creates each root if needed and writes and removes a probe file in it.
func (c *CacheRootChecker) Check(ctx context.Context) Result {
	if len(c.roots) == 0 {
		return Healthy("no cache roots configured")
	}

	details := make(map[string]any, len(c.roots))
	var failed int
	for _, root := range c.roots {
		if err := ctx.Err(); err != nil {
			return Unhealthy("context cancelled", err)
		}
		if err := probe(root); err != nil {
			details[root] = err.Error()
			failed++
			continue
		}
		details[root] = "writable"
	}

	if failed > 0 {
		return Unhealthy(fmt.Sprintf("%d of %d cache roots not writable", failed, len(c.roots)), ErrCheckFailed).
			WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d cache roots writable", len(c.roots))).WithDetails(details)
}

func probe(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(root, ".datahub-health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	closeErr := f.Close()
	if err := os.Remove(name); err != nil {
		return err
	}
	return closeErr
}
