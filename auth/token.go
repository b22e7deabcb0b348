package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// ParamAuthUser and ParamAuthToken are the query parameters DataHub clients
// use to send credentials.
const (
	ParamAuthUser  = "authuser"
	ParamAuthToken = "authtoken"
)

// TokenConfig configures the token authenticator.
type TokenConfig struct {
	// HeaderName is an alternative to the authtoken parameter.
	// Default: "X-API-Key"
	HeaderName string
}

// TokenInfo describes a registered access token.
type TokenInfo struct {
	// ID names the token in logs. The token itself is never logged.
	ID string

	// Hash is the SHA-256 hex digest of the token.
	Hash string

	// User is the principal the token belongs to.
	User string

	Roles []string

	// ExpiresAt is zero for tokens that never expire.
	ExpiresAt time.Time
}

// TokenStore looks up tokens by hash.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a missing token is (nil, nil).
type TokenStore interface {
	Lookup(ctx context.Context, hash string) (*TokenInfo, error)
}

// TokenAuthenticator validates the authtoken parameter (or the X-API-Key
// header). When the client also sends authuser it must name the token's
// owner.
type TokenAuthenticator struct {
	config TokenConfig
	store  TokenStore
}

var _ Authenticator = (*TokenAuthenticator)(nil)

// NewTokenAuthenticator creates a token authenticator backed by store.
func NewTokenAuthenticator(config TokenConfig, store TokenStore) *TokenAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &TokenAuthenticator{config: config, store: store}
}

func (a *TokenAuthenticator) Name() string {
	return string(AuthMethodToken)
}

func (a *TokenAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return a.token(req) != ""
}

func (a *TokenAuthenticator) token(req *AuthRequest) string {
	if t := strings.TrimSpace(req.GetParam(ParamAuthToken)); t != "" {
		return t
	}
	return strings.TrimSpace(req.GetHeader(a.config.HeaderName))
}

// Authenticate validates the token.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	token := a.token(req)
	if token == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	info, err := a.store.Lookup(ctx, HashToken(token))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	}
	if user := req.GetParam(ParamAuthUser); user != "" && !ConstantTimeCompare(user, info.User) {
		return AuthFailure(ErrUserMismatch, a.Name()), nil
	}

	return AuthSuccess(&Identity{
		Principal: info.User,
		Roles:     info.Roles,
		Method:    AuthMethodToken,
		ExpiresAt: info.ExpiresAt,
		Claims:    map[string]any{"token_id": info.ID},
	}), nil
}

// HashToken hashes a token using SHA-256 for storage.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ConstantTimeCompare performs constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MemoryTokenStore is an in-memory token store, filled from config.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*TokenInfo // keyed by hash
}

var _ TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*TokenInfo)}
}

func (s *MemoryTokenStore) Lookup(_ context.Context, hash string) (*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[hash], nil
}

// Add registers info. Hash is computed from token when info.Hash is empty.
func (s *MemoryTokenStore) Add(token string, info TokenInfo) {
	if info.Hash == "" {
		info.Hash = HashToken(token)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[info.Hash] = &info
}

// Remove removes the token with the given hash.
func (s *MemoryTokenStore) Remove(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, hash)
}

// Len returns the number of registered tokens.
func (s *MemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
