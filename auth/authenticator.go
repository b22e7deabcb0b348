package auth

import (
	"context"
	"net/http"
	"net/url"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods should honor cancellation/deadlines.
//   - Errors: Authenticate returns (nil, error) for internal errors;
//     returns (AuthResult, nil) for auth failures (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if the request carries a credential this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the credentials of one query request. DataHub clients
// send credentials either as headers or as the authuser/authtoken query
// parameters.
type AuthRequest struct {
	Headers http.Header
	Params  url.Values

	// Resource is the module path being requested.
	Resource string
}

// NewAuthRequest builds an AuthRequest from an HTTP request.
func NewAuthRequest(r *http.Request) *AuthRequest {
	return &AuthRequest{
		Headers:  r.Header,
		Params:   r.URL.Query(),
		Resource: r.URL.Path,
	}
}

// GetHeader returns the first value for a header, or empty string.
func (r *AuthRequest) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// GetParam returns the first value of a query parameter, or empty string.
func (r *AuthRequest) GetParam(key string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params.Get(key)
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	Authenticated bool

	// Identity is set only when Authenticated is true.
	Identity *Identity

	// Error is set only when Authenticated is false.
	Error error

	// Method names the authenticator that produced the result.
	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{
		Authenticated: false,
		Error:         err,
		Method:        method,
	}
}

// AuthenticatorFunc is an adapter to allow use of ordinary functions as Authenticators.
type AuthenticatorFunc struct {
	name     string
	supports func(ctx context.Context, req *AuthRequest) bool
	auth     func(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

func (f *AuthenticatorFunc) Name() string {
	return f.name
}

func (f *AuthenticatorFunc) Supports(ctx context.Context, req *AuthRequest) bool {
	return f.supports(ctx, req)
}

func (f *AuthenticatorFunc) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	return f.auth(ctx, req)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(
	name string,
	supports func(ctx context.Context, req *AuthRequest) bool,
	auth func(ctx context.Context, req *AuthRequest) (*AuthResult, error),
) *AuthenticatorFunc {
	return &AuthenticatorFunc{
		name:     name,
		supports: supports,
		auth:     auth,
	}
}
