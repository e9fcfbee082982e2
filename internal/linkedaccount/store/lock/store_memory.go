package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process lock store with TTL expiry, used by unit tests
// and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	locks map[string]time.Time
	clock func() time.Time
}

// NewMemory constructs an empty in-memory lock store.
func NewMemory() *MemoryStore {
	return &MemoryStore{locks: make(map[string]time.Time), clock: time.Now}
}

// WithClock overrides the time source for TTL expiry tests.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if expiry, held := s.locks[key]; held && now.Before(expiry) {
		return false, nil
	}
	s.locks[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}
