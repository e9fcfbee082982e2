// Package service implements the verification coordinator: account linking,
// challenge-token issuance, and saga initiation. It owns no state of its own;
// everything it knows is derived from the event store and the user aggregate.
package service

import (
	"context"
	"log/slog"
	"time"

	"tunelink/internal/linkedaccount/metrics"
	"tunelink/internal/linkedaccount/models"
	"tunelink/internal/linkedaccount/projection"
	usermodels "tunelink/internal/user/models"
	id "tunelink/pkg/domain"
)

type EventStore interface {
	Append(ctx context.Context, req models.AppendRequest) (models.Event, error)
	ListByStream(ctx context.Context, accountID string, platform models.Platform, userID id.UserID) ([]models.Event, error)
}

type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*usermodels.User, error)
	Update(ctx context.Context, user *usermodels.User) error
}

type TokenStore interface {
	GetAuthenticationToken(ctx context.Context, userID id.UserID, provider, name string) (string, error)
	SetAuthenticationToken(ctx context.Context, userID id.UserID, provider, name, value string) error
	RemoveAuthenticationToken(ctx context.Context, userID id.UserID, provider, name string) error
}

type LockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Service coordinates the verification saga up to the publish boundary.
// Everything past the command topic is the checker's problem.
type Service struct {
	events    EventStore
	users     UserStore
	tokens    TokenStore
	locks     LockStore
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	lockTTL   time.Duration
}

type Deps struct {
	Events    EventStore
	Users     UserStore
	Tokens    TokenStore
	Locks     LockStore
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	LockTTL   time.Duration
}

func New(deps Deps) *Service {
	if deps.LockTTL <= 0 {
		deps.LockTTL = 15 * time.Minute
	}
	return &Service{
		events:    deps.Events,
		users:     deps.Users,
		tokens:    deps.Tokens,
		locks:     deps.Locks,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		lockTTL:   deps.LockTTL,
	}
}

// currentState folds the stream into its projection. Returns nil when the
// stream is empty.
func (s *Service) currentState(ctx context.Context, accountID string, platform models.Platform, userID id.UserID) (*models.State, error) {
	events, err := s.events.ListByStream(ctx, accountID, platform, userID)
	if err != nil {
		return nil, err
	}
	return projection.Project(events), nil
}
