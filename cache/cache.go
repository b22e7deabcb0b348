package cache

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for cache operations.
var (
	ErrNilStore    = errors.New("cache: store is nil")
	ErrInvalidPath = errors.New("cache: path is invalid")
	ErrNoRoot      = errors.New("cache: cache root is not configured")
	ErrLagValue    = errors.New("cache: lag parameter is not a date")
)

// Store persists encoded query results under filesystem-style paths.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use, including
//     across processes sharing the same root.
//   - Atomicity: a reader sees either the previous entry or the complete new one.
//   - Errors: Get returns (nil, false, nil) on a miss; errors are reserved for
//     I/O failures. Delete is idempotent.
type Store interface {
	Get(ctx context.Context, path string) ([]byte, bool, error)
	Set(ctx context.Context, path string, payload []byte) error
	Delete(ctx context.Context, path string) error
}

// ValidatePath checks that path can name a cache entry.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" || strings.ContainsAny(path, "\x00\n\r") {
		return ErrInvalidPath
	}
	if strings.HasSuffix(path, "/") {
		return ErrInvalidPath
	}
	return nil
}
