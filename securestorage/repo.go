// Package securestorage defines the key/value capability the credential store persists into.
// Implementations live in the sub-packages: memstore, filestore, sqlitestore and redisstore.
package securestorage

import "context"

// SecureStorage is a durable string key/value store.
// All implementations must be safe for concurrent use.
type SecureStorage interface {
	// SetItem stores value under key, replacing any previous value
	SetItem(ctx context.Context, key, value string) error

	// GetItem returns the value for key; ok is false when the key is absent
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// DeleteItem removes key. Deleting an absent key is not an error
	DeleteItem(ctx context.Context, key string) error
}
