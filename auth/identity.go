package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodToken     AuthMethod = "token"
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
)

// Identity is the caller a request runs as.
type Identity struct {
	// Principal is the user name the credential belongs to.
	Principal string

	// Roles gate access to modules, see GrantAuthorizer.
	Roles []string

	Method AuthMethod

	// Claims holds the raw token claims (JWT) or token metadata.
	Claims map[string]any

	// ExpiresAt is zero for credentials that never expire.
	ExpiresAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	if id.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(id.ExpiresAt)
}

// IsAnonymous returns true if this is an anonymous identity.
func (id *Identity) IsAnonymous() bool {
	return id.Method == AuthMethodAnonymous || id.Principal == ""
}

// AnonymousIdentity is attached to requests without credentials when
// anonymous access is allowed.
func AnonymousIdentity() *Identity {
	return &Identity{
		Principal: "anonymous",
		Method:    AuthMethodAnonymous,
		Claims:    make(map[string]any),
	}
}
