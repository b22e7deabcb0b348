package auth

import (
	"encoding/json"
	"net/http"
)

// ParamCallerID is the query parameter clients use to identify the calling
// program.
const ParamCallerID = "callerid"

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// Authenticator validates credentials. Nil disables authentication and
	// every request runs as the anonymous identity.
	Authenticator Authenticator

	// AllowAnonymous admits requests that carry no credentials at all.
	// Requests with bad credentials are still rejected.
	AllowAnonymous bool

	// OnFailure is called for every rejected request.
	OnFailure func(r *http.Request, err error)
}

// Middleware authenticates each request and attaches the identity and
// callerid to its context.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if caller := r.URL.Query().Get(ParamCallerID); caller != "" {
				ctx = WithCallerID(ctx, caller)
			}

			reject := func(code int, err error) {
				if cfg.OnFailure != nil {
					cfg.OnFailure(r, err)
				}
				if code == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="datahub"`)
				}
				writeError(w, code, err)
			}

			if cfg.Authenticator == nil {
				next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, AnonymousIdentity())))
				return
			}

			req := NewAuthRequest(r)
			if !cfg.Authenticator.Supports(ctx, req) {
				if cfg.AllowAnonymous {
					next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, AnonymousIdentity())))
					return
				}
				reject(http.StatusUnauthorized, ErrMissingCredentials)
				return
			}

			result, err := cfg.Authenticator.Authenticate(ctx, req)
			if err != nil {
				reject(http.StatusInternalServerError, err)
				return
			}
			if !result.Authenticated {
				reject(http.StatusUnauthorized, result.Error)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, result.Identity)))
		})
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
