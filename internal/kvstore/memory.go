package kvstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the collection's document, or nil if it was never written.
func (s *MemoryStore) Get(_ context.Context, collection string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[collection]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Set replaces the collection's document.
func (s *MemoryStore) Set(_ context.Context, collection string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.data[collection] = cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
