// Package store provides the expiring key-value storage the reservation engine keeps all of its
// state in.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is a TTL-capable string store.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value at key only if key is absent. Reports whether it was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// CompareAndSwap atomically replaces the value at key with next if it currently equals prev.
	// Swapping a value with itself refreshes the TTL.
	CompareAndSwap(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error)

	// CompareAndDelete atomically deletes key if it currently equals value.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// Scan returns all keys matching a glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
