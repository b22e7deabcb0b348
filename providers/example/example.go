// Package example is a demonstration provider. Its queries return random
// data along with the id of the process that produced it, which makes
// worker isolation and cache hits visible from the outside.
package example

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/jonwraymond/datahub/cache"
	"github.com/jonwraymond/datahub/frame"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/query"
)

// ModulePath is the path the provider registers under.
const ModulePath = "example/example"

// DefaultCacheRoot is used when Options.CacheRoot is empty.
const DefaultCacheRoot = "/tmp"

// LagWindow keeps the last day of data, plus the seven hours Los Angeles
// trails UTC, out of the cache.
const LagWindow = 31 * time.Hour

// SecretTest is the key of the secret random_data reports on.
const SecretTest = "Test"

// Options wires the provider to the process's stack.
type Options struct {
	CacheRoot string

	// Secrets holds the module's configured secrets.
	Secrets map[string]string

	Logger  observe.Logger
	Metrics observe.Metrics

	// Store defaults to a cache.DiskStore.
	Store cache.Store

	// Now overrides the lag policy clock.
	Now func() time.Time
}

type provider struct {
	secrets map[string]string
	logger  observe.Logger
}

// Register adds the example module and its queries to reg.
func Register(reg *query.Registry, opts Options) error {
	if opts.CacheRoot == "" {
		opts.CacheRoot = DefaultCacheRoot
	}
	if opts.Logger == nil {
		opts.Logger = observe.NopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.NopMetrics()
	}
	if opts.Store == nil {
		opts.Store = cache.NewDiskStore()
	}

	mod := query.Module{
		Path:      ModulePath,
		Doc:       "Random data for trying out outputs, isolation and caching.",
		CacheRoot: opts.CacheRoot,
	}
	if err := reg.AddModule(mod); err != nil {
		return err
	}

	memo, err := cache.NewMemoizer(opts.Store, cache.Config{
		Root: mod.CacheRoot,
		Stem: mod.Stem(),
		Policy: cache.Policy{
			LagParams: []string{"start_date", "end_date"},
			LagWindow: LagWindow,
			Now:       opts.Now,
		},
	}, cache.WithModule(ModulePath), cache.WithLogger(opts.Logger), cache.WithMetrics(opts.Metrics))
	if err != nil {
		return err
	}

	p := &provider{secrets: opts.Secrets, logger: opts.Logger}
	dated := []query.Param{query.Date("start_date"), query.Date("end_date")}
	cachedSpec := query.Spec{
		Name:     "random_data_date_cached",
		Doc:      "random_data_date, cached once the range is more than 31 hours old.",
		Params:   dated,
		Examples: []string{"&output=csv&start_date=2024-08-01&end_date=2024-08-10", "&output=html&start_date=2024-08-01&end_date=2024-08-10"},
	}

	queries := []query.Query{
		{
			Spec: query.Spec{
				Name:     "random_data",
				Doc:      "A rows x cols frame of random integers in [0, 1000], plus pid and time columns.",
				Params:   []query.Param{query.String("rows"), query.String("cols")},
				Examples: []string{"&output=csv&rows=5&cols=1", "&output=html&rows=5&cols=1"},
			},
			Func: p.randomData,
		},
		{
			Spec: query.Spec{
				Name:     "random_data_date",
				Doc:      "A 3 x 3 random frame with start_date and end_date columns.",
				Params:   dated,
				Examples: []string{"&output=csv&start_date=2024-08-01&end_date=2024-08-10"},
			},
			Func: p.randomDataDate,
		},
		{Spec: cachedSpec, Func: memo.Wrap(cachedSpec, p.randomDataDate)},
	}
	for _, q := range queries {
		if err := reg.Register(ModulePath, q); err != nil {
			return err
		}
	}
	return nil
}

func positive(params query.Params, name string) (int, error) {
	n, err := strconv.Atoi(params[name])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", query.ErrInvalidParam, name, params[name])
	}
	return n, nil
}

func (p *provider) randomData(ctx context.Context, params query.Params) (query.Result, error) {
	rows, err := positive(params, "rows")
	if err != nil {
		return query.Result{}, err
	}
	cols, err := positive(params, "cols")
	if err != nil {
		return query.Result{}, err
	}

	if secret, ok := p.secrets[SecretTest]; ok {
		p.logger.Debug(ctx, "secret loaded", observe.F("secret", secret))
	} else {
		p.logger.Warn(ctx, "secret missing", observe.F("key", SecretTest), observe.F("module", ModulePath))
	}

	f, err := randomFrame(rows, cols)
	if err != nil {
		return query.Result{}, err
	}
	return query.FrameResult(f), nil
}

func (p *provider) randomDataDate(ctx context.Context, params query.Params) (query.Result, error) {
	start, err := query.ParseTime(params["start_date"])
	if err != nil {
		return query.Result{}, err
	}
	end, err := query.ParseTime(params["end_date"])
	if err != nil {
		return query.Result{}, err
	}

	f, err := randomFrame(3, 3)
	if err != nil {
		return query.Result{}, err
	}
	if err := f.Add(frame.Times("start_date", repeat(start, 3)...)); err != nil {
		return query.Result{}, err
	}
	if err := f.Add(frame.Times("end_date", repeat(end, 3)...)); err != nil {
		return query.Result{}, err
	}
	return query.FrameResult(f), nil
}

// randomFrame builds columns "0".."cols-1" of random integers followed by
// the producing pid and the wall clock time as a string.
func randomFrame(rows, cols int) (*frame.Frame, error) {
	f := &frame.Frame{Index: frame.RangeIndex(rows)}
	for c := range cols {
		values := make([]int64, rows)
		for r := range values {
			values[r] = rand.Int64N(1001)
		}
		if err := f.Add(frame.Ints(strconv.Itoa(c), values...)); err != nil {
			return nil, err
		}
	}

	now := strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', -1, 64)
	if err := f.Add(frame.Ints("pid", repeat(int64(os.Getpid()), rows)...)); err != nil {
		return nil, err
	}
	if err := f.Add(frame.Strings("time", repeat(now, rows)...)); err != nil {
		return nil, err
	}
	return f, nil
}

func repeat[T any](v T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = v
	}
	return out
}
