package service

import (
	"context"
	"errors"
	"time"

	"tunelink/internal/linkedaccount/models"
	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/sentinel"
)

// StateSummary is the read-model slice handed to the HTTP layer.
type StateSummary struct {
	Status    models.Status
	CreatedAt time.Time
}

// GetAccountVerificationState is a read-only projection lookup. Returns nil
// when the stream is empty.
func (s *Service) GetAccountVerificationState(ctx context.Context, userID id.UserID, accountID string) (*StateSummary, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	ref, ok := user.FindAccountByID(accountID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not linked")
	}

	state, err := s.currentState(ctx, accountID, ref.Platform, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account state")
	}
	if state == nil {
		return nil, nil
	}
	return &StateSummary{Status: state.Status, CreatedAt: state.CreatedAt}, nil
}
