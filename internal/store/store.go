// Package store provides the key/value, hash, and set primitives that all
// per-user state is persisted through.
package store

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("store is closed")

// Store is the persistence contract used by the repositories. Every
// operation touches a single key; no implementation is required to offer
// transactions across keys.
type Store interface {
	// Get returns the string stored at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// HGetAll returns every field of the hash at key. An absent hash yields
	// an empty, non-nil map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// HSet writes the given fields into the hash at key, leaving other fields untouched.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// HSetNX writes field only if it is not already present. It reports whether
	// the field was written.
	HSetNX(ctx context.Context, key, field, value string) (bool, error)

	// HDel removes fields from the hash at key. Missing fields are ignored.
	HDel(ctx context.Context, key string, fields ...string) error

	// SAdd adds member to the set at key and reports whether it was newly added.
	SAdd(ctx context.Context, key, member string) (bool, error)

	// SIsMember reports whether member belongs to the set at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// SMembers lists the members of the set at key in no particular order.
	SMembers(ctx context.Context, key string) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
