package bytestore

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemStore keeps every value in memory. It is safe for concurrent use.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, ErrNotFound)
	}
	return cloneBytes(v), nil
}

func (m *MemStore) Put(key string, data []byte) error {
	m.mu.Lock()
	m.data[key] = cloneBytes(data)
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return fmt.Errorf("delete %q: %w", key, ErrNotFound)
	}
	delete(m.data, key)
	return nil
}

func (m *MemStore) List(prefix string) ([]string, error) {
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (m *MemStore) CompareAndSwap(key string, old, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, exists := m.data[key]
	if err := checkExpected(key, cur, exists, old); err != nil {
		return err
	}
	if data == nil {
		delete(m.data, key)
		return nil
	}
	m.data[key] = cloneBytes(data)
	return nil
}

func checkExpected(key string, cur []byte, exists bool, old []byte) error {
	if old == nil {
		if exists {
			return fmt.Errorf("swap %q: %w (expected absent)", key, ErrMismatch)
		}
		return nil
	}
	if !exists || !bytes.Equal(cur, old) {
		return fmt.Errorf("swap %q: %w", key, ErrMismatch)
	}
	return nil
}
