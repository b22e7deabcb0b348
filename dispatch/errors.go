package dispatch

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/datahub/query"
)

// Isolation failures. Neither says anything about the query's own logic.
var (
	// ErrWorkerCrashed indicates the worker died or panicked before
	// producing a result.
	ErrWorkerCrashed = errors.New("dispatch: worker crashed")

	// ErrWorkerTimeout indicates the worker exceeded the isolation timeout.
	ErrWorkerTimeout = errors.New("dispatch: worker timed out")
)

var (
	// ErrMissingQueryID indicates a request without a qid parameter.
	ErrMissingQueryID = errors.New("dispatch: missing qid parameter")

	ErrNilRegistry = errors.New("dispatch: registry is nil")
	ErrNilIsolator = errors.New("dispatch: isolator is nil")
	ErrNoCommand   = errors.New("dispatch: worker command is empty")
)

// Failure kinds carried by a QueryError across the worker boundary.
const (
	KindQuery      = "query"
	KindBadRequest = "bad_request"
	KindNotFound   = "not_found"
)

// QueryError is a query failure reported by a subprocess worker. Only the
// message survives the process boundary; Kind keeps the HTTP classification.
type QueryError struct {
	Module  string `json:"module"`
	Query   string `json:"query"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", query.Identity{Module: e.Module, Name: e.Query}, e.Message)
}

// Unwrap maps the kind back to a query sentinel so query.IsBadRequest and
// query.IsNotFound classify the error like its in-process original.
func (e *QueryError) Unwrap() error {
	switch e.Kind {
	case KindBadRequest:
		return query.ErrInvalidParam
	case KindNotFound:
		return query.ErrQueryNotFound
	default:
		return nil
	}
}

func newQueryError(req Request, err error) *QueryError {
	kind := KindQuery
	switch {
	case query.IsBadRequest(err):
		kind = KindBadRequest
	case query.IsNotFound(err):
		kind = KindNotFound
	}
	return &QueryError{Module: req.Module, Query: req.Query, Kind: kind, Message: err.Error()}
}
