package dispatch

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jonwraymond/datahub/auth"
	"github.com/jonwraymond/datahub/observe"
	"github.com/jonwraymond/datahub/output"
	"github.com/jonwraymond/datahub/query"
	"github.com/jonwraymond/datahub/resilience"
)

// Config wires a Dispatcher.
type Config struct {
	// Isolator runs the queries. Required.
	Isolator Isolator

	// FastCache resolves fast_cache requests.
	// Default: NewFastCache(reg, nil)
	FastCache *FastCache

	// Bulkhead bounds concurrent workers. Nil means unbounded.
	Bulkhead *resilience.Bulkhead

	// Middleware adds tracing, metrics and the completion log line.
	// Default: a middleware that only logs to Logger.
	Middleware *observe.Middleware

	Logger observe.Logger
}

// Dispatcher turns a boundary call (module path plus raw parameters) into a
// formatted response.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: resolution errors come back before any worker starts; query,
//     isolation and formatting errors are returned for the caller to map.
type Dispatcher struct {
	registry *query.Registry
	isolator Isolator
	fast     *FastCache
	bulkhead *resilience.Bulkhead
	mw       *observe.Middleware
	logger   observe.Logger
}

// New creates a Dispatcher over reg.
func New(reg *query.Registry, cfg Config) (*Dispatcher, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if cfg.Isolator == nil {
		return nil, ErrNilIsolator
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.FastCache == nil {
		cfg.FastCache = NewFastCache(reg, nil)
	}
	if cfg.Middleware == nil {
		cfg.Middleware = observe.NewMiddleware(nil, nil, cfg.Logger)
	}
	return &Dispatcher{
		registry: reg,
		isolator: cfg.Isolator,
		fast:     cfg.FastCache,
		bulkhead: cfg.Bulkhead,
		mw:       cfg.Middleware,
		logger:   cfg.Logger,
	}, nil
}

// Dispatch runs the query named by params["qid"] in module and renders its
// result as params["output"]. Every reserved parameter is removed before the
// query sees the call; cache-control flags travel with the request.
func (d *Dispatcher) Dispatch(ctx context.Context, module string, params query.Params) (output.Formatted, error) {
	name := strings.TrimSpace(params[query.ParamQueryID])
	if name == "" {
		return output.Formatted{}, ErrMissingQueryID
	}
	kind, err := output.ParseKind(params[query.ParamOutput])
	if err != nil {
		return output.Formatted{}, err
	}
	module = query.CleanPath(module)
	if _, err := d.registry.Lookup(module, name); err != nil {
		return output.Formatted{}, err
	}

	if kind == output.KindFastCache {
		path, err := d.fast.Path(module, name, params[ParamStartDate], params[ParamEndDate])
		if err != nil {
			d.logger.WithQuery(observe.QueryMeta{Module: module, Name: name}).
				Debug(ctx, "fast cache unresolved", observe.F("error", err))
		}
		return output.FastCache(path), nil
	}

	req := Request{
		ID:     RequestIDFromContext(ctx),
		Module: module,
		Query:  name,
		Params: StripReserved(params),
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	exec := d.mw.Wrap(func(ctx context.Context, _ observe.QueryMeta) ([]byte, error) {
		if d.bulkhead == nil {
			return d.isolator.Run(ctx, req)
		}
		var payload []byte
		err := d.bulkhead.Execute(ctx, func(ctx context.Context) error {
			var err error
			payload, err = d.isolator.Run(ctx, req)
			return err
		})
		return payload, err
	})
	payload, err := exec(ctx, observe.QueryMeta{Module: module, Name: name, RequestID: req.ID})
	if err != nil {
		return output.Formatted{}, err
	}
	return output.Format(payload, kind)
}

// StripReserved returns a copy of params without the boundary parameters
// (qid, output and caller identification). Cache-control flags are kept.
func StripReserved(params query.Params) query.Params {
	out := params.Clone()
	for _, k := range []string{query.ParamQueryID, query.ParamOutput, auth.ParamAuthUser, auth.ParamAuthToken, auth.ParamCallerID} {
		delete(out, k)
	}
	return out
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that Dispatch reuses for its worker.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the ID set by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
