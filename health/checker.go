package health

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCheckFailed     = errors.New("health: check failed")
	ErrCheckTimeout    = errors.New("health: check did not finish in time")
	ErrCheckerNotFound = errors.New("health: no such check")
)

// Status orders check outcomes from best to worst.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded still serves queries, e.g. with every worker slot busy.
	StatusDegraded
	// StatusUnhealthy means queries will fail.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Ready reports whether a server in this state should receive queries.
func (s Status) Ready() bool { return s < StatusUnhealthy }

// Result is what one check saw.
type Result struct {
	Status    Status
	Message   string
	Details   map[string]any
	Duration  time.Duration
	Timestamp time.Time
	Error     error
}

func newResult(s Status, msg string, err error) Result {
	return Result{Status: s, Message: msg, Error: err, Timestamp: time.Now()}
}

func Healthy(msg string) Result { return newResult(StatusHealthy, msg, nil) }

func Degraded(msg string) Result { return newResult(StatusDegraded, msg, nil) }

func Unhealthy(msg string, err error) Result { return newResult(StatusUnhealthy, msg, err) }

// WithDetails returns r carrying details.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker probes one dependency of query serving.
//
// Contract:
//   - Concurrency: Check may be called concurrently.
//   - Context: Check should return promptly once ctx is done.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type funcChecker struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc turns fn into a Checker called name.
func NewCheckerFunc(name string, fn func(context.Context) Result) Checker {
	return funcChecker{name: name, fn: fn}
}

func (f funcChecker) Name() string { return f.name }

func (f funcChecker) Check(ctx context.Context) Result { return f.fn(ctx) }
