// Package storage is the key/value layer the tracker persists into. Values are
// opaque strings; the repository package decides what they contain.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for a key that was never set or was removed.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable wraps every failure of the underlying medium.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is a string key/value store shared by every instance of the same origin.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
