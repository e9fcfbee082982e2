package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tunelink/internal/linkedaccount/models"
	tokenstore "tunelink/internal/linkedaccount/store/token"
	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/sentinel"
)

const tokenNamespace = "tunelink"

// GetTokenVerification returns the challenge token for the account, minting
// one if none is stored. Minting is only admitted while the stream status is
// Pending or Error; a verified account never gets a fresh token.
func (s *Service) GetTokenVerification(ctx context.Context, userID id.UserID, accountID string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	ref, ok := user.FindAccountByID(accountID)
	if !ok {
		return "", dErrors.New(dErrors.CodeNotFound, "account not linked")
	}

	name := tokenstore.Name(ref.Platform.String(), accountID)
	token, err := s.tokens.GetAuthenticationToken(ctx, userID, tokenstore.ProviderAccountChallenge, name)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load challenge token")
	}

	state, err := s.currentState(ctx, accountID, ref.Platform, userID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account state")
	}
	if state == nil {
		return "", dErrors.New(dErrors.CodeNotFound, "account has no verification stream")
	}
	if state.Status != models.StatusPending && state.Status != models.StatusError {
		return "", dErrors.Newf(dErrors.CodeConflict, "token issuance not permitted while status is %s", state.Status)
	}

	token = fmt.Sprintf("%s-%s-%s", tokenNamespace, ref.Platform, uuid.NewString())
	if err := s.tokens.SetAuthenticationToken(ctx, userID, tokenstore.ProviderAccountChallenge, name, token); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store challenge token")
	}
	if _, err := s.events.Append(ctx, models.AppendRequest{
		AccountID:     accountID,
		UserID:        userID,
		Platform:      ref.Platform,
		Type:          models.EventTokenIssued,
		CorrelationID: state.CorrelationID,
	}); err != nil {
		// The token must not outlive a failed append or the stream and the
		// secret store disagree about whether issuance happened.
		if rmErr := s.tokens.RemoveAuthenticationToken(ctx, userID, tokenstore.ProviderAccountChallenge, name); rmErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove orphaned challenge token",
				"error", rmErr, "user_id", userID.String(), "account_id", accountID)
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to append token issued event")
	}

	s.metrics.IncrementTokensIssued()
	s.logger.InfoContext(ctx, "challenge token issued",
		"user_id", userID.String(),
		"platform", ref.Platform.String(),
		"account_id", accountID,
	)
	return token, nil
}
