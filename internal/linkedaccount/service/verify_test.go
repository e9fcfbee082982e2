package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"tunelink/internal/linkedaccount/messages"
	dErrors "tunelink/pkg/domain-errors"
	"tunelink/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestStartVerifyAccount() {
	s.Run("publishes a command carrying the token and correlation id", func() {
		userID, accountID := s.seedLinkedAccount("spotify")
		token, err := s.service.GetTokenVerification(s.ctx, userID, accountID)
		s.Require().NoError(err)

		result, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().NoError(err)
		s.True(result.Started)

		published := s.publisher.published()
		s.Require().Len(published, 1)
		msg := published[0]
		s.Equal(messages.TopicVerifyCommand, msg.Topic)
		s.Equal(accountID, msg.Key)

		cmd := decodeCommand(s.T(), msg.Value)
		s.Equal(userID.String(), cmd.UserID)
		s.Equal(accountID, cmd.AccountID)
		s.Equal("spotify", cmd.Platform)
		s.Equal(token, cmd.Token)

		s.NotEmpty(msg.Headers[messages.HeaderCorrelationID])
		s.Equal("spotify-"+accountID, msg.Headers[messages.HeaderTokenKey])
	})

	s.Run("second initiation while the lock is held publishes nothing", func() {
		userID, accountID := s.seedLinkedAccount("spotify")
		_, err := s.service.GetTokenVerification(s.ctx, userID, accountID)
		s.Require().NoError(err)

		first, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().NoError(err)
		s.True(first.Started)

		second, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().NoError(err)
		s.False(second.Started)
		s.Equal(MessageVerificationInProgress, second.Message)
		s.Len(s.publisher.published(), 1)
	})

	s.Run("concurrent initiations publish exactly one command", func() {
		userID, accountID := s.seedLinkedAccount("spotify")
		_, err := s.service.GetTokenVerification(s.ctx, userID, accountID)
		s.Require().NoError(err)

		const callers = 16
		var wg sync.WaitGroup
		started := make(chan bool, callers)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
				s.NoError(err)
				started <- result.Started
			}()
		}
		wg.Wait()
		close(started)

		wins := 0
		for ok := range started {
			if ok {
				wins++
			}
		}
		s.Equal(1, wins)
		s.Len(s.publisher.published(), 1)
	})

	s.Run("missing token returns a failure tuple and leaves the lock held", func() {
		userID, accountID := s.seedLinkedAccount("spotify")

		result, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().NoError(err)
		s.False(result.Started)
		s.NotEmpty(result.Message)
		s.Empty(s.publisher.published())

		// The lock stays until TTL expiry, so a retry is refused.
		retry, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().NoError(err)
		s.Equal(MessageVerificationInProgress, retry.Message)
	})

	s.Run("publish failure releases the lock and surfaces the error", func() {
		userID, accountID := s.seedLinkedAccount("spotify")
		_, err := s.service.GetTokenVerification(s.ctx, userID, accountID)
		s.Require().NoError(err)

		s.publisher.err = errors.New("broker unavailable")
		_, err = s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		// Lock was released, so the retry gets as far as publishing again.
		s.publisher.err = nil
		result, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
		s.Require().NoError(err)
		s.True(result.Started)
	})

	s.Run("unlinked account returns a failure tuple", func() {
		result, err := s.service.StartVerifyAccount(s.ctx, s.seedUser(), "never-linked")
		s.Require().NoError(err)
		s.False(result.Started)
		s.NotEmpty(result.Message)
	})
}

func (s *ServiceSuite) TestStartVerifyAccountLockError() {
	userID, accountID := s.seedLinkedAccount("spotify")
	s.service.locks = failingLocks{}

	_, err := s.service.StartVerifyAccount(s.ctx, userID, accountID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type failingLocks struct{}

func (failingLocks) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return false, sentinel.ErrUnavailable
}

func (failingLocks) Release(_ context.Context, _ string) error { return nil }
