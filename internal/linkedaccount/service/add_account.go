package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"tunelink/internal/linkedaccount/models"
	usermodels "tunelink/internal/user/models"
	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/sentinel"
)

// Reason codes returned by AddAccount. These are business outcomes rendered
// directly to callers, not errors.
const (
	ReasonAccountCreated  = "account-created"
	ReasonInvalidPlatform = "invalid-platform"
	ReasonAlreadyLinked   = "platform-already-linked"
)

type AddAccountRequest struct {
	Platform   string
	AccountID  string
	ProfileURL string
}

type AddAccountResult struct {
	OK        bool
	AccountID string
	Reason    string
}

// AddAccount links a platform account to the user: appends AccountCreated to
// the stream, then adds the UserAccountRef and persists the user. The ref
// write is the commit point; an appended event without a ref is inert because
// every later operation resolves the account through the ref first.
func (s *Service) AddAccount(ctx context.Context, userID id.UserID, req AddAccountRequest) (AddAccountResult, error) {
	platform, ok := models.ParsePlatform(req.Platform)
	if !ok {
		return AddAccountResult{Reason: ReasonInvalidPlatform}, nil
	}
	if !platform.SupportsVerification() {
		return AddAccountResult{Reason: "ownership verification is not yet available for " + platform.String()}, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return AddAccountResult{}, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return AddAccountResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if user.HasAccount(platform, req.AccountID) {
		return AddAccountResult{Reason: ReasonAlreadyLinked}, nil
	}

	correlationID := uuid.NewString()
	if _, err := s.events.Append(ctx, models.AppendRequest{
		AccountID:     req.AccountID,
		UserID:        userID,
		Platform:      platform,
		Type:          models.EventAccountCreated,
		CorrelationID: correlationID,
	}); err != nil {
		return AddAccountResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append account created event")
	}

	user.AddAccount(usermodels.AccountRef{
		Platform:   platform,
		AccountID:  req.AccountID,
		ProfileURL: req.ProfileURL,
	})
	if err := s.users.Update(ctx, user); err != nil {
		return AddAccountResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist account ref")
	}

	s.metrics.IncrementAccountsCreated()
	s.logger.InfoContext(ctx, "platform account linked",
		"user_id", userID.String(),
		"platform", platform.String(),
		"account_id", req.AccountID,
		"correlation_id", correlationID,
	)
	return AddAccountResult{OK: true, AccountID: req.AccountID, Reason: ReasonAccountCreated}, nil
}
