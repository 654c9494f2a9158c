package store

import (
	"errors"
	"sync"
)

// TrustedStateKey is the key the light client keeps its trusted state under.
const TrustedStateKey = "trusted_state"

// ErrKeyNotFound is returned by Get when nothing is stored under the key.
var ErrKeyNotFound = errors.New("key not found")

// Storage is anything that can persistently store byte values by key.
//
// Implementations must be safe for concurrent use. A successful Set must be
// visible to every later Get, also after a restart for persistent stores.
type Storage interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error
}

// MemStorage keeps values in memory. Its zero value is not usable; use
// NewMemStorage.
type MemStorage struct {
	mtx    sync.RWMutex
	values map[string][]byte
}

var _ Storage = (*MemStorage)(nil)

func NewMemStorage() *MemStorage {
	return &MemStorage{values: make(map[string][]byte)}
}

func (s *MemStorage) Get(key string) ([]byte, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemStorage) Set(key string, value []byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}
