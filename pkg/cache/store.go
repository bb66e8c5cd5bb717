package cache

import (
	"context"
	"sync"
)

// Store persists cache entries. Implementations must make Load, Save and
// Delete atomic per key; the last Save for a key wins.
type Store interface {
	// Load returns ErrCacheMiss if the key is unknown.
	Load(ctx context.Context, key string) (*CacheEntry, error)
	Save(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]CacheEntry)}
}

// Load returns a copy of the stored entry.
func (s *MemoryStore) Load(_ context.Context, key string) (*CacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Save stores a copy of entry, replacing any previous one.
func (s *MemoryStore) Save(_ context.Context, key string, entry *CacheEntry) error {
	s.mu.Lock()
	s.entries[key] = *entry
	s.mu.Unlock()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]CacheEntry)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
