package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/basetips/ports"
)

// MemoryStore is an in-memory implementation of the NonceLedger interface.
// It only protects a single process.
type MemoryStore struct {
	consumed map[string]time.Time
	mu       sync.Mutex
	now      func() time.Time
}

var _ ports.NonceLedger = &MemoryStore{}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		consumed: make(map[string]time.Time),
		now:      now,
	}
}

// Consume marks a nonce as consumed until ttl elapses
func (s *MemoryStore) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purge(now)

	if expiry, exists := s.consumed[nonce]; exists && now.Before(expiry) {
		return false, nil
	}
	s.consumed[nonce] = now.Add(ttl)

	return true, nil
}

// IsConsumed checks if a nonce has been consumed
func (s *MemoryStore) IsConsumed(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.consumed[nonce]
	if !exists {
		return false, nil
	}

	return s.now().Before(expiry), nil
}

// purge drops expired entries; callers hold s.mu
func (s *MemoryStore) purge(now time.Time) {
	for nonce, expiry := range s.consumed {
		if !now.Before(expiry) {
			delete(s.consumed, nonce)
		}
	}
}
