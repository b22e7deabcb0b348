package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/jonwraymond/datahub/auth"
	"github.com/jonwraymond/datahub/dispatch"
	"github.com/jonwraymond/datahub/output"
	"github.com/jonwraymond/datahub/query"
	"github.com/jonwraymond/datahub/resilience"
)

// StatusFor maps a dispatch error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case query.IsNotFound(err):
		return http.StatusNotFound
	case query.IsBadRequest(err),
		errors.Is(err, dispatch.ErrMissingQueryID),
		errors.Is(err, dispatch.ErrInvalidRange),
		errors.Is(err, output.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, resilience.ErrBulkheadFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, dispatch.ErrWorkerTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, dispatch.ErrWorkerCrashed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Status    int      `json:"status"`
	Chain     []string `json:"chain,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// chain lists the messages of err and every error it wraps, outermost
// first. Joined errors contribute each branch.
func chain(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		for e != nil {
			msg := e.Error()
			if !slices.Contains(out, msg) {
				out = append(out, msg)
			}
			if j, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range j.Unwrap() {
					walk(inner)
				}
				return
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err)
	return out
}

// redactor hides cache roots in error text unless the server runs in debug
// mode. Longer roots are replaced first so nested roots stay hidden.
type redactor struct {
	roots []string
}

func newRedactor(roots []string) redactor {
	var uniq []string
	for _, r := range roots {
		r = strings.TrimRight(r, "/")
		if r != "" && !slices.Contains(uniq, r) {
			uniq = append(uniq, r)
		}
	}
	slices.SortFunc(uniq, func(a, b string) int { return len(b) - len(a) })
	return redactor{roots: uniq}
}

func (r redactor) apply(s string) string {
	for _, root := range r.roots {
		s = strings.ReplaceAll(s, root, "<cache>")
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
