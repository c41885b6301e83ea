package session

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing store could not serve the request.
// Callers are expected to degrade rather than fail: a missed read becomes an
// empty state, a missed write is dropped.
var ErrUnavailable = errors.New("session store unavailable")

// Store is a session-scoped key-value store. Values last for the lifetime of
// the session and disappear with it.
type Store interface {
	// Get returns the stored value and whether the key existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores the value, refreshing the session lifetime.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping probes the backing store for readiness.
	Ping(ctx context.Context) error
}
