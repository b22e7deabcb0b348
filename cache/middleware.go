package cache

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/datahub/frame"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/query"
)

// Config locates a module's cache entries and carries its lag policy.
type Config struct {
	// Root is the module's cache directory.
	Root string

	// Stem is the per-module subdirectory under Root.
	Stem string

	Policy Policy
}

// Option configures a Memoizer.
type Option func(*Memoizer)

// WithKeyer replaces the DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(m *Memoizer) { m.keyer = k }
}

// WithLogger sets the logger used for cache events.
func WithLogger(l observe.Logger) Option {
	return func(m *Memoizer) { m.logger = l }
}

// WithMetrics sets the metrics sink for cache events.
func WithMetrics(mt observe.Metrics) Option {
	return func(m *Memoizer) { m.metrics = mt }
}

// WithModule sets the module path reported in telemetry.
func WithModule(path string) Option {
	return func(m *Memoizer) { m.module = path }
}

// Memoizer wraps query functions with the disk cache.
//
// Contract:
//   - Concurrency: safe for concurrent use. Concurrent misses of one entry in
//     this process share a single invocation.
//   - Errors: errors of the wrapped function are returned unchanged and never
//     cached. Cache failures are logged and the call runs live.
type Memoizer struct {
	store   Store
	keyer   Keyer
	cfg     Config
	module  string
	logger  observe.Logger
	metrics observe.Metrics
	group   singleflight.Group
}

// NewMemoizer creates a Memoizer writing through store.
func NewMemoizer(store Store, cfg Config, opts ...Option) (*Memoizer, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, ErrNoRoot
	}
	m := &Memoizer{
		store:   store,
		keyer:   NewDefaultKeyer(),
		cfg:     cfg,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Path returns the entry path for an already bound call.
func (m *Memoizer) Path(queryName string, bound query.Params) string {
	return m.keyer.Path(m.cfg.Root, m.cfg.Stem, queryName, bound)
}

// Wrap returns fn memoized under spec.
//
// Cache-control parameters are removed from params and merged with the
// options on the context. The remaining parameters are bound against spec,
// so positional, named and defaulted spellings of one call share an entry.
func (m *Memoizer) Wrap(spec query.Spec, fn query.Func) query.Func {
	return func(ctx context.Context, params query.Params) (query.Result, error) {
		meta := observe.QueryMeta{Module: m.module, Name: spec.Name}
		log := m.logger.WithQuery(meta)

		rest, opts, err := query.ExtractOptions(params)
		if err != nil {
			return query.Result{}, err
		}
		opts = opts.Merge(query.OptionsFromContext(ctx))

		bound, err := spec.Bind(nil, rest)
		if err != nil {
			return query.Result{}, err
		}

		decision, err := m.cfg.Policy.Decide(opts, bound)
		if err != nil {
			log.Warn(ctx, "cache disabled", observe.F("error", err))
			m.metrics.RecordCacheEvent(ctx, meta, observe.CacheError)
			return fn(ctx, bound)
		}
		if !decision.Enabled() {
			log.Debug(ctx, "cache disabled",
				observe.F("bypass", opts.BypassCache),
				observe.F("force_refresh", opts.ForceRefresh))
			m.metrics.RecordCacheEvent(ctx, meta, observe.CacheDisabled)
			return fn(ctx, bound)
		}

		path := m.Path(spec.Name, bound)
		if decision.Read {
			if res, ok := m.read(ctx, log, meta, path); ok {
				return res, nil
			}
		}

		compute := func() (any, error) {
			res, err := fn(ctx, bound)
			if err != nil {
				return nil, err
			}
			return m.write(ctx, log, meta, path, res), nil
		}

		var r singleflight.Result
		select {
		case r = <-m.group.DoChan(path, compute):
		case <-ctx.Done():
			return query.Result{}, ctx.Err()
		}
		// The shared call runs under the first caller's context. If that
		// caller went away, callers that are still live compute on their own.
		if r.Shared && isContextErr(r.Err) && ctx.Err() == nil {
			log.Debug(ctx, "shared computation cancelled, recomputing", observe.F("path", path))
			r.Val, r.Err = compute()
		}
		if r.Err != nil {
			return query.Result{}, r.Err
		}
		return r.Val.(query.Result), nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (m *Memoizer) read(ctx context.Context, log observe.Logger, meta observe.QueryMeta, path string) (query.Result, bool) {
	payload, ok, err := m.store.Get(ctx, path)
	if err != nil {
		log.Warn(ctx, "cache read failed", observe.F("path", path), observe.F("error", err))
		m.metrics.RecordCacheEvent(ctx, meta, observe.CacheError)
		return query.Result{}, false
	}
	if !ok {
		log.Info(ctx, "cache miss", observe.F("path", path))
		m.metrics.RecordCacheEvent(ctx, meta, observe.CacheMiss)
		return query.Result{}, false
	}
	f, err := frame.Decode(payload)
	if err != nil {
		log.Warn(ctx, "cache read failed", observe.F("path", path), observe.F("error", err))
		m.metrics.RecordCacheEvent(ctx, meta, observe.CacheError)
		return query.Result{}, false
	}
	log.Info(ctx, "cache hit", observe.F("path", path), observe.F("bytes", len(payload)))
	m.metrics.RecordCacheEvent(ctx, meta, observe.CacheHit)
	return query.Both(f, payload), true
}

// write stores res and returns it with its encoding attached. Failures leave
// res as computed.
func (m *Memoizer) write(ctx context.Context, log observe.Logger, meta observe.QueryMeta, path string, res query.Result) query.Result {
	encoded, err := res.Encode()
	if err != nil {
		log.Error(ctx, "cache write failed", observe.F("path", path), observe.F("error", err))
		m.metrics.RecordCacheEvent(ctx, meta, observe.CacheError)
		return res
	}
	payload, _ := encoded.Bytes()
	if err := m.store.Set(ctx, path, payload); err != nil {
		log.Warn(ctx, "cache write failed", observe.F("path", path), observe.F("error", err))
		m.metrics.RecordCacheEvent(ctx, meta, observe.CacheError)
		return encoded
	}
	log.Info(ctx, "cache write", observe.F("path", path), observe.F("bytes", len(payload)))
	m.metrics.RecordCacheEvent(ctx, meta, observe.CacheWrite)
	return encoded
}
