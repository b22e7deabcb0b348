package auth

import "context"

type contextKey int

const (
	identityKey contextKey = iota
	callerKey
)

// WithIdentity returns a new context with the given identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns nil if no identity is present.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// PrincipalFromContext returns "" if no identity is present.
func PrincipalFromContext(ctx context.Context) string {
	id := IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.Principal
}

// WithCallerID records the free-form callerid a client sent. It is only used
// for logging and never for access decisions.
func WithCallerID(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerIDFromContext returns the callerid recorded by WithCallerID.
func CallerIDFromContext(ctx context.Context) string {
	c, _ := ctx.Value(callerKey).(string)
	return c
}
