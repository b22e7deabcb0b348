package dispatch

import (
	"context"

	"github.com/jonwraymond/datahub/query"
)

// Request is one query invocation. It is also the message a subprocess
// worker reads on stdin.
type Request struct {
	ID     string       `json:"id,omitempty"`
	Module string       `json:"module"`
	Query  string       `json:"query"`
	Params query.Params `json:"params,omitempty"`
}

// Runner executes requests against a registry in the current process.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: resolution and query errors are returned unchanged.
type Runner struct {
	registry *query.Registry
}

// NewRunner creates a Runner over reg.
func NewRunner(reg *query.Registry) (*Runner, error) {
	if reg == nil {
		return nil, ErrNilRegistry
	}
	return &Runner{registry: reg}, nil
}

// Execute resolves and invokes the request's query and returns its encoded
// result. Cache-control parameters travel on the context, so a memoized query
// sees them while an unmemoized one never receives them. An already encoded
// result, such as a cache hit, is returned without re-encoding.
func (r *Runner) Execute(ctx context.Context, req Request) ([]byte, error) {
	q, err := r.registry.Lookup(req.Module, req.Query)
	if err != nil {
		return nil, err
	}

	params, opts, err := query.ExtractOptions(req.Params)
	if err != nil {
		return nil, err
	}
	ctx = query.WithOptions(ctx, opts.Merge(query.OptionsFromContext(ctx)))

	res, err := q.Call(ctx, nil, params)
	if err != nil {
		return nil, err
	}
	return res.Bytes()
}
