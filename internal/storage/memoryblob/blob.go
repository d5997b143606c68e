// Package memoryblob implements an in-memory blob store, used in tests and
// single-process development mode.
package memoryblob

import (
	"context"
	"sync"
)

type entry struct {
	data        []byte
	contentType string
}

// Store is a concurrency-safe in-memory blob store.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

func (s *Store) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]byte, len(data))
	copy(copied, data)
	s.entries[key] = entry{data: copied, contentType: contentType}
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, "", false, nil
	}

	copied := make([]byte, len(e.data))
	copy(copied, e.data)
	return copied, e.contentType, true, nil
}
