// Package localstore is the client's persistent, process-local key-value
// facility and the collection primitives built on it. Each collection is
// stored under its own key as a JSON array.
package localstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("local store closed")

// Store is a string key-value store with browser localStorage semantics.
type Store interface {
	// GetItem returns the value stored under key and whether it exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	// SetItem replaces the value stored under key.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// Locker is implemented by stores shared between processes. Lock blocks until
// the caller holds exclusive write access or ctx ends.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}
