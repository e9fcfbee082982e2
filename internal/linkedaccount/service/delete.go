package service

import (
	"context"
	"errors"

	"tunelink/internal/linkedaccount/models"
	tokenstore "tunelink/internal/linkedaccount/store/token"
	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/sentinel"
)

// DeleteAccount unlinks the platform account: appends AccountUnlinked,
// removes the stored challenge token, and persists the user without the ref.
// Idempotent: deleting an already-absent ref succeeds with no side effects.
// The event log keeps the stream's history after unlink.
func (s *Service) DeleteAccount(ctx context.Context, userID id.UserID, accountID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	ref, ok := user.FindAccountByID(accountID)
	if !ok {
		return nil
	}

	if _, err := s.events.Append(ctx, models.AppendRequest{
		AccountID: accountID,
		UserID:    userID,
		Platform:  ref.Platform,
		Type:      models.EventAccountUnlinked,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append account unlinked event")
	}

	name := tokenstore.Name(ref.Platform.String(), accountID)
	if err := s.tokens.RemoveAuthenticationToken(ctx, userID, tokenstore.ProviderAccountChallenge, name); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove challenge token")
	}

	user.RemoveAccountByID(accountID)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist account removal")
	}

	s.metrics.IncrementAccountsUnlinked()
	s.logger.InfoContext(ctx, "platform account unlinked",
		"user_id", userID.String(),
		"platform", ref.Platform.String(),
		"account_id", accountID,
	)
	return nil
}
