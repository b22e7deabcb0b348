package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Authorizer decides whether an identity may run queries of a module.
type Authorizer interface {
	// Authorize returns nil if permitted, or an error (typically
	// *AuthzError) if denied.
	Authorize(ctx context.Context, req *AuthzRequest) error

	Name() string
}

// AuthzRequest names the caller and the query it wants to run.
type AuthzRequest struct {
	Subject *Identity

	// Module is the module path, e.g. "finance/prices".
	Module string

	// Query is the qid, empty for listing requests.
	Query string
}

// AuthzError represents an authorization failure.
type AuthzError struct {
	Subject string
	Module  string
	Reason  string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %q may not access %q: %s", e.Subject, e.Module, e.Reason)
}

// Is reports whether this error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == ErrForbidden
}

// AllowAllAuthorizer permits all requests.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Authorize(context.Context, *AuthzRequest) error { return nil }

func (AllowAllAuthorizer) Name() string { return "allow_all" }

// GrantAuthorizer restricts module subtrees to roles. A module is governed
// by the grant with the longest matching path prefix; modules under no grant
// are open to every authenticated caller. The role "*" admits everyone who
// is not anonymous.
type GrantAuthorizer struct {
	grants map[string][]string
}

var _ Authorizer = (*GrantAuthorizer)(nil)

// NewGrantAuthorizer creates an authorizer from prefix → roles grants.
// Prefixes are module paths without leading or trailing slashes.
func NewGrantAuthorizer(grants map[string][]string) *GrantAuthorizer {
	g := &GrantAuthorizer{grants: make(map[string][]string, len(grants))}
	for prefix, roles := range grants {
		g.grants[strings.Trim(prefix, "/")] = slices.Clone(roles)
	}
	return g
}

func (g *GrantAuthorizer) Name() string { return "grants" }

func (g *GrantAuthorizer) Authorize(_ context.Context, req *AuthzRequest) error {
	prefix, roles, ok := g.match(strings.Trim(req.Module, "/"))
	if !ok {
		return nil
	}

	subject := ""
	if req.Subject != nil {
		subject = req.Subject.Principal
		if !req.Subject.IsAnonymous() && slices.Contains(roles, "*") {
			return nil
		}
		for _, r := range roles {
			if req.Subject.HasRole(r) {
				return nil
			}
		}
	}
	return &AuthzError{
		Subject: subject,
		Module:  req.Module,
		Reason:  fmt.Sprintf("%q requires one of %v", prefix, roles),
	}
}

func (g *GrantAuthorizer) match(module string) (string, []string, bool) {
	best := ""
	var roles []string
	found := false
	for prefix, r := range g.grants {
		if !underPrefix(module, prefix) {
			continue
		}
		if !found || len(prefix) > len(best) {
			best, roles, found = prefix, r, true
		}
	}
	return best, roles, found
}

// underPrefix matches whole path segments; "" matches every module.
func underPrefix(module, prefix string) bool {
	if prefix == "" || module == prefix {
		return true
	}
	return strings.HasPrefix(module, prefix+"/")
}
