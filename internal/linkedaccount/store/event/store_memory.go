// Package event persists the append-only log of linked-account facts. Stores
// assign per-stream sequence numbers at append time; sequences are strictly
// increasing within a stream but not required to be gapless.
package event

import (
	"context"
	"sync"
	"time"

	"tunelink/internal/linkedaccount/models"
	id "tunelink/pkg/domain"
)

type streamKey struct {
	AccountID string
	Platform  models.Platform
	UserID    id.UserID
}

// MemoryStore is the in-memory event log used by unit tests and local runs.
// It favors clarity over performance.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[streamKey][]models.Event
}

// NewMemory constructs an empty in-memory event store.
func NewMemory() *MemoryStore {
	return &MemoryStore{streams: make(map[streamKey][]models.Event)}
}

// Append assigns the next sequence for the stream and persists the event.
// The store mutex makes sequence assignment atomic; concurrent appends never
// drop or duplicate a sequence.
func (s *MemoryStore) Append(ctx context.Context, req models.AppendRequest) (models.Event, error) {
	if err := ctx.Err(); err != nil {
		return models.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := streamKey{AccountID: req.AccountID, Platform: req.Platform, UserID: req.UserID}
	var next int64 = 1
	if existing := s.streams[key]; len(existing) > 0 {
		next = existing[len(existing)-1].Sequence + 1
	}

	event := models.Event{
		ID:            id.NewEventID(),
		AccountID:     req.AccountID,
		UserID:        req.UserID,
		Platform:      req.Platform,
		Type:          req.Type,
		Sequence:      next,
		CorrelationID: req.CorrelationID,
		Payload:       req.Payload,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
	}
	s.streams[key] = append(s.streams[key], event)
	return event, nil
}

// ListByStream returns every event of the stream in append order.
func (s *MemoryStore) ListByStream(ctx context.Context, accountID string, platform models.Platform, userID id.UserID) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := streamKey{AccountID: accountID, Platform: platform, UserID: userID}
	events := s.streams[key]
	out := make([]models.Event, len(events))
	copy(out, events)
	return out, nil
}
