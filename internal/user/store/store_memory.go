// Package store persists the user aggregate. The postgres store is the
// production implementation; the memory store backs unit tests and local runs.
package store

import (
	"context"
	"sync"

	"tunelink/internal/user/models"
	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/sentinel"
)

// MemoryStore keeps user aggregates in a map.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[id.UserID]models.User
}

// NewMemory constructs an empty in-memory user store.
func NewMemory() *MemoryStore {
	return &MemoryStore{users: make(map[id.UserID]models.User)}
}

// Save inserts or replaces a user aggregate.
func (s *MemoryStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = cloneUser(user)
	return nil
}

// FindByID returns a copy of the aggregate, or sentinel.ErrNotFound.
func (s *MemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		copied := cloneUser(&user)
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// Update replaces an existing aggregate, or returns sentinel.ErrNotFound.
func (s *MemoryStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

// cloneUser copies the aggregate so callers cannot mutate stored state.
func cloneUser(user *models.User) models.User {
	copied := *user
	copied.Accounts = make([]models.AccountRef, len(user.Accounts))
	copy(copied.Accounts, user.Accounts)
	return copied
}
