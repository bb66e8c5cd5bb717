// Package session creates checkout sessions for catalog products and keeps
// their responses in an idempotency store, so a retried request with the
// same cart token or idempotency key gets the same session back.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get for unknown keys.
var ErrNotFound = errors.New("session record not found")

// Record is a stored session response.
type Record struct {
	Response  Response  `json:"response"`
	Timestamp time.Time `json:"ts"`
}

// Store persists session records by idempotency key. The last Set for a key
// wins.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record Record) error
}

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get returns a copy of the record stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// Set stores record under key.
func (s *MemoryStore) Set(_ context.Context, key string, record Record) error {
	s.mu.Lock()
	s.records[key] = record
	s.mu.Unlock()
	return nil
}
