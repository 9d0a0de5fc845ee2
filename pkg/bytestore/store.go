// Package bytestore provides the persistent key/value collaborators the
// virtual filesystem is layered on.
package bytestore

import (
	"errors"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrMismatch = errors.New("compare-and-swap mismatch")
)

// Store is a flat byte store addressed by string keys. Implementations must
// make each Put durable before returning and must return copies of stored
// values.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Delete(key string) error
	// List returns every key starting with prefix, sorted.
	List(prefix string) ([]string, error)
}

// Swapper is implemented by stores that can atomically replace a value.
//
// A nil old requires the key to be absent. A nil data deletes the key.
// When the stored value does not match old, ErrMismatch is returned and
// nothing changes.
type Swapper interface {
	CompareAndSwap(key string, old, data []byte) error
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
