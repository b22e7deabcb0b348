package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"
)

func tokenStore() *MemoryTokenStore {
	s := NewMemoryTokenStore()
	s.Add("s3cret", TokenInfo{ID: "alice-1", User: "alice", Roles: []string{"analyst"}})
	s.Add("stale", TokenInfo{ID: "bob-1", User: "bob", ExpiresAt: time.Now().Add(-time.Minute)})
	return s
}

func TestTokenAuthenticator_Supports(t *testing.T) {
	a := NewTokenAuthenticator(TokenConfig{}, tokenStore())
	tests := []struct {
		name string
		req  *AuthRequest
		want bool
	}{
		{"nothing", &AuthRequest{}, false},
		{"authtoken param", &AuthRequest{Params: url.Values{"authtoken": {"x"}}}, true},
		{"blank param", &AuthRequest{Params: url.Values{"authtoken": {"  "}}}, false},
		{"api key header", &AuthRequest{Headers: http.Header{"X-Api-Key": {"x"}}}, true},
		{"authuser alone", &AuthRequest{Params: url.Values{"authuser": {"alice"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Supports(context.Background(), tt.req); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenAuthenticator_Authenticate(t *testing.T) {
	a := NewTokenAuthenticator(TokenConfig{}, tokenStore())

	tests := []struct {
		name     string
		req      *AuthRequest
		wantUser string
		wantErr  error
	}{
		{
			name:     "param token",
			req:      &AuthRequest{Params: url.Values{"authtoken": {"s3cret"}}},
			wantUser: "alice",
		},
		{
			name:     "param token with matching user",
			req:      &AuthRequest{Params: url.Values{"authtoken": {"s3cret"}, "authuser": {"alice"}}},
			wantUser: "alice",
		},
		{
			name:     "header token",
			req:      &AuthRequest{Headers: http.Header{"X-Api-Key": {" s3cret "}}},
			wantUser: "alice",
		},
		{
			name:    "user mismatch",
			req:     &AuthRequest{Params: url.Values{"authtoken": {"s3cret"}, "authuser": {"bob"}}},
			wantErr: ErrUserMismatch,
		},
		{
			name:    "unknown token",
			req:     &AuthRequest{Params: url.Values{"authtoken": {"guess"}}},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "expired token",
			req:     &AuthRequest{Params: url.Values{"authtoken": {"stale"}}},
			wantErr: ErrTokenExpired,
		},
		{
			name:    "no token",
			req:     &AuthRequest{},
			wantErr: ErrMissingCredentials,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := a.Authenticate(context.Background(), tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantErr != nil {
				if res.Authenticated || !errors.Is(res.Error, tt.wantErr) {
					t.Errorf("result = %+v, want %v", res, tt.wantErr)
				}
				return
			}
			if !res.Authenticated || res.Identity.Principal != tt.wantUser {
				t.Fatalf("result = %+v", res)
			}
			if res.Identity.Method != AuthMethodToken || res.Identity.Claims["token_id"] != "alice-1" {
				t.Errorf("identity = %+v", res.Identity)
			}
		})
	}
}

func TestTokenAuthenticator_StoreError(t *testing.T) {
	boom := errors.New("store down")
	store := tokenStoreFunc(func(context.Context, string) (*TokenInfo, error) { return nil, boom })
	a := NewTokenAuthenticator(TokenConfig{}, store)
	_, err := a.Authenticate(context.Background(), &AuthRequest{Params: url.Values{"authtoken": {"x"}}})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

type tokenStoreFunc func(context.Context, string) (*TokenInfo, error)

func (f tokenStoreFunc) Lookup(ctx context.Context, hash string) (*TokenInfo, error) {
	return f(ctx, hash)
}

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore()
	s.Add("abc", TokenInfo{User: "carol"})
	if s.Len() != 1 {
		t.Fatalf("Len() = %d", s.Len())
	}

	info, _ := s.Lookup(context.Background(), HashToken("abc"))
	if info == nil || info.User != "carol" || info.Hash != HashToken("abc") {
		t.Fatalf("Lookup() = %+v", info)
	}

	// A pre-hashed entry is stored under its given hash.
	s.Add("", TokenInfo{User: "dave", Hash: HashToken("def")})
	if info, _ := s.Lookup(context.Background(), HashToken("def")); info == nil || info.User != "dave" {
		t.Errorf("Lookup(pre-hashed) = %+v", info)
	}

	s.Remove(HashToken("abc"))
	if info, _ := s.Lookup(context.Background(), HashToken("abc")); info != nil {
		t.Errorf("Lookup after Remove = %+v", info)
	}
}

func TestHashToken(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashToken("abc"); got != want {
		t.Errorf("HashToken() = %s", got)
	}
	if !ConstantTimeCompare("a", "a") || ConstantTimeCompare("a", "b") {
		t.Error("ConstantTimeCompare")
	}
}
