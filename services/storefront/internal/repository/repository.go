package repository

import "context"

// KVStore is a durable string store addressed by key. It models the
// browser's origin-scoped key-value storage.
type KVStore interface {
	// Get returns the stored value, or an error wrapping apperrors.ErrNotFound
	// when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
