// internal/cache/store.go
package cache

import (
	"errors"
	"strings"
	"sync"
)

// ErrStoreFull is returned by a Store when a write would exceed its
// capacity. The cache reacts by evicting old entries and retrying once.
var ErrStoreFull = errors.New("cache store full")

// Store is the persistent key-value surface behind the expiring cache. The
// payload bytes are opaque to the store.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
	Close() error
}

// MemoryStore is an in-process Store with an optional entry cap. It backs
// tests and quota simulations; production uses the sqlite store.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string][]byte
	maxEntries int
}

// NewMemoryStore builds a MemoryStore. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string][]byte),
		maxEntries: maxEntries,
	}
}

func (s *MemoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		return ErrStoreFull
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[key] = v
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *MemoryStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }
