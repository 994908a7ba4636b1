package bookmark

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node tooling.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]time.Time
}

// NewMemoryStore creates an empty in-memory bookmark store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]time.Time)}
}

// Get returns the bookmark for key, or false if none is stored.
func (s *MemoryStore) Get(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.values[key]
	return ts, ok, nil
}

// Set unconditionally writes the bookmark for key.
func (s *MemoryStore) Set(_ context.Context, key string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = ts
	return nil
}

// SetIfLater advances the bookmark for key only if ts is strictly later than
// the stored value.
func (s *MemoryStore) SetIfLater(_ context.Context, key string, ts time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.values[key]; ok && !ts.After(existing) {
		return false, nil
	}
	s.values[key] = ts
	return true, nil
}
