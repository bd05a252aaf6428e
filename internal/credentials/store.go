// Package credentials persists session secrets.
//
// Values are opaque byte slices addressed by key. Implementations must never
// log values and must apply Replace atomically so a reader never observes a
// half-written session.
package credentials

import (
	"github.com/eshaffer321/docvault-go/internal/types"
)

// Store is a small secret key/value store
type Store interface {
	// Put stores value under key, overwriting any previous value
	Put(key string, value []byte) error

	// Get returns the value for key, or nil without error when absent
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// DeleteAll removes every key
	DeleteAll() error

	// Replace swaps the full key set for values in one step
	Replace(values map[string][]byte) error

	Close() error
}

func storageError(err error, format string, args ...interface{}) error {
	return types.WrapStorage(err, format, args...)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
