package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"tunelink/internal/linkedaccount/messages"
	tokenstore "tunelink/internal/linkedaccount/store/token"
	id "tunelink/pkg/domain"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/sentinel"
)

// MessageVerificationInProgress is returned when the distributed lock is
// already held for the (user, account) pair.
const MessageVerificationInProgress = "Verification already in progress."

type StartVerifyResult struct {
	Started bool
	Message string
}

// lockKey builds the mutual-exclusion key guarding verification initiation.
func lockKey(userID id.UserID, accountID string) string {
	return fmt.Sprintf("account-verification:%s:%s", userID, accountID)
}

// StartVerifyAccount publishes a verification command for the account under
// the distributed lock. Business-level misses (unknown account, no token)
// return a failure tuple and leave the lock to expire, which throttles
// re-initiation. Infrastructure failures release the lock before returning so
// a healthy retry is not blocked for the full TTL.
func (s *Service) StartVerifyAccount(ctx context.Context, userID id.UserID, accountID string) (StartVerifyResult, error) {
	key := lockKey(userID, accountID)
	acquired, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return StartVerifyResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire verification lock")
	}
	if !acquired {
		return StartVerifyResult{Message: MessageVerificationInProgress}, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return StartVerifyResult{Message: "User not found."}, nil
		}
		return StartVerifyResult{}, s.releaseAndWrap(ctx, key, err, "failed to load user")
	}
	ref, ok := user.FindAccountByID(accountID)
	if !ok {
		return StartVerifyResult{Message: "Account is not linked."}, nil
	}

	state, err := s.currentState(ctx, accountID, ref.Platform, userID)
	if err != nil {
		return StartVerifyResult{}, s.releaseAndWrap(ctx, key, err, "failed to load account state")
	}
	if state == nil {
		return StartVerifyResult{Message: "Account has no verification stream."}, nil
	}

	name := tokenstore.Name(ref.Platform.String(), accountID)
	token, err := s.tokens.GetAuthenticationToken(ctx, userID, tokenstore.ProviderAccountChallenge, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return StartVerifyResult{Message: "No challenge token has been issued."}, nil
		}
		return StartVerifyResult{}, s.releaseAndWrap(ctx, key, err, "failed to load challenge token")
	}

	command := messages.VerifyAccountCommand{
		UserID:    userID,
		AccountID: accountID,
		Platform:  ref.Platform,
		Token:     token,
	}
	payload, err := json.Marshal(command)
	if err != nil {
		return StartVerifyResult{}, s.releaseAndWrap(ctx, key, err, "failed to encode verification command")
	}
	headers := map[string]string{
		messages.HeaderCorrelationID: state.CorrelationID,
		messages.HeaderTokenKey:      name,
	}
	if err := s.publisher.Publish(ctx, messages.TopicVerifyCommand, []byte(accountID), payload, headers); err != nil {
		return StartVerifyResult{}, s.releaseAndWrap(ctx, key, err, "failed to publish verification command")
	}

	s.metrics.IncrementVerificationsStarted()
	s.logger.InfoContext(ctx, "verification started",
		"user_id", userID.String(),
		"platform", ref.Platform.String(),
		"account_id", accountID,
		"correlation_id", state.CorrelationID,
	)
	return StartVerifyResult{Started: true}, nil
}

// releaseAndWrap deletes the lock so infrastructure failures do not block
// retries for the full TTL, then wraps the originating error.
func (s *Service) releaseAndWrap(ctx context.Context, key string, err error, msg string) error {
	if relErr := s.locks.Release(ctx, key); relErr != nil {
		s.logger.ErrorContext(ctx, "failed to release verification lock", "error", relErr, "key", key)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
