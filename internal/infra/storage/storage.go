// Package storage defines the key-value persistence abstraction that carries
// per-epoch worker state across stateless invocations, plus the typed key
// schema all callers must build keys through.
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Store is the epoch-scoped key-value contract. Values are opaque strings
// (JSON snapshots in practice). Writes happen only after the corresponding
// network operation fully succeeded; the system tolerates re-processing
// duplicate work on top of the last persisted checkpoint.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error

	// Keys lists all stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Clear deletes every key with the given prefix. Used to garbage-collect
	// a whole epoch when it finishes.
	Clear(ctx context.Context, prefix string) error
}
