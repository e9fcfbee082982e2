package token

import (
	"context"
	"sync"

	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/sentinel"
)

// MemoryStore keeps tokens in a map for unit tests and local runs.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemory constructs an empty in-memory token store.
func NewMemory() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (s *MemoryStore) GetAuthenticationToken(_ context.Context, userID id.UserID, provider, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.tokens[key(userID, provider, name)]; ok {
		return value, nil
	}
	return "", sentinel.ErrNotFound
}

func (s *MemoryStore) SetAuthenticationToken(_ context.Context, userID id.UserID, provider, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key(userID, provider, name)] = value
	return nil
}

func (s *MemoryStore) RemoveAuthenticationToken(_ context.Context, userID id.UserID, provider, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key(userID, provider, name))
	return nil
}
