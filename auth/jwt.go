package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim).
	Issuer string

	// Audience is the expected token audience (aud claim).
	Audience string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string

	// PrincipalClaim is the claim containing the user principal.
	// Default: "sub"
	PrincipalClaim string

	// RolesClaim is the claim containing user roles.
	// Default: "roles"
	RolesClaim string

	// Methods lists the accepted signing algorithms.
	// Default: HS256
	Methods []string

	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a static signing key.
type StaticKeyProvider struct {
	key []byte
}

var _ KeyProvider = (*StaticKeyProvider)(nil)

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// JWTAuthenticator validates bearer tokens.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
	parser      *jwt.Parser
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}
	if config.RolesClaim == "" {
		config.RolesClaim = "roles"
	}
	if len(config.Methods) == 0 {
		config.Methods = []string{jwt.SigningMethodHS256.Alg()}
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods(config.Methods)}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}

	return &JWTAuthenticator{
		config:      config,
		keyProvider: keyProvider,
		parser:      jwt.NewParser(opts...),
	}
}

func (a *JWTAuthenticator) Name() string {
	return string(AuthMethodJWT)
}

// Supports returns true if the request carries a bearer token.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return strings.HasPrefix(req.GetHeader(a.config.HeaderName), a.config.TokenPrefix)
}

// Authenticate validates the JWT token.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	header := req.GetHeader(a.config.HeaderName)
	tokenString, ok := strings.CutPrefix(header, a.config.TokenPrefix)
	tokenString = strings.TrimSpace(tokenString)
	if !ok || tokenString == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return a.keyProvider.GetKey(ctx, kid)
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return AuthFailure(ErrTokenMalformed, a.Name()), nil
	default:
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}

	id := a.buildIdentity(claims)
	if id.Principal == "" {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	if user := req.GetParam(ParamAuthUser); user != "" && user != id.Principal {
		return AuthFailure(ErrUserMismatch, a.Name()), nil
	}
	return AuthSuccess(id), nil
}

func (a *JWTAuthenticator) buildIdentity(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		Method: AuthMethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}

	if principal, ok := claims[a.config.PrincipalClaim].(string); ok {
		identity.Principal = principal
	}

	switch roles := claims[a.config.RolesClaim].(type) {
	case []any:
		identity.Roles = make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok {
				identity.Roles = append(identity.Roles, s)
			}
		}
	case string:
		identity.Roles = strings.Fields(roles)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity
}
