package auth

import "context"

// Chain tries authenticators in order and returns the first success. When
// none succeeds the last failure is returned, so a request with a bad token
// and no bearer header reports the token error.
type Chain struct {
	authenticators []Authenticator
}

var _ Authenticator = (*Chain)(nil)

// NewChain creates a chain. Nil authenticators are skipped.
func NewChain(auths ...Authenticator) *Chain {
	c := &Chain{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of authenticators in the chain.
func (c *Chain) Len() int {
	return len(c.authenticators)
}

// Supports returns true if any authenticator supports the request.
func (c *Chain) Supports(ctx context.Context, req *AuthRequest) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate tries each supporting authenticator in sequence. Internal
// errors stop the chain.
func (c *Chain) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	var last *AuthResult
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		result, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}
		last = result
	}
	if last != nil {
		return last, nil
	}
	return AuthFailure(ErrMissingCredentials, c.Name()), nil
}
