// Package checker implements the remote proof checker: it consumes
// verification commands, scans the account's platform content for the
// challenge token, and publishes a single definite result. Infrastructure
// failures propagate so the bus redelivers the command; a result message is
// only ever a verdict.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tunelink/internal/checker/credentials"
	"tunelink/internal/checker/platformapi"
	"tunelink/internal/linkedaccount/messages"
	"tunelink/internal/platform/kafka/consumer"
	"tunelink/pkg/platform/circuit"
)

// ErrorProfileNotFound is the sentinel error string carried in results when
// the platform reports no such account.
const ErrorProfileNotFound = "Profile not found"

// errorVerificationFailed covers every other non-success platform response.
const errorVerificationFailed = "Verification failed"

var checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tunelink_checker_checks_total",
	Help: "Total number of verification commands checked, by outcome",
}, []string{"outcome"})

// ContentLister fetches the first page of an account's content.
// platformapi.Client satisfies this.
type ContentLister interface {
	ListContent(ctx context.Context, bearer, accountID string) ([]platformapi.Item, error)
}

// Publisher publishes result messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Service handles verification commands.
type Service struct {
	pool      *credentials.Pool
	api       ContentLister
	publisher Publisher
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

func New(pool *credentials.Pool, api ContentLister, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		pool:      pool,
		api:       api,
		publisher: publisher,
		breaker:   circuit.New("platform-api", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:    logger,
	}
}

// observe feeds platform transport outcomes into the circuit breaker. The
// breaker does not block calls, redelivery already paces retries; it flags
// sustained platform outages in the logs so they are distinguishable from
// per-account failures.
func (s *Service) observe(ctx context.Context, transportErr error) {
	if transportErr != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.WarnContext(ctx, "platform api circuit opened", "breaker", s.breaker.Name())
		}
		return
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "platform api circuit closed", "breaker", s.breaker.Name())
	}
}

// Handle processes one verification command. Returning an error leaves the
// command uncommitted for redelivery; publishing a result commits a verdict.
func (s *Service) Handle(ctx context.Context, msg *consumer.Message) error {
	var cmd messages.VerifyAccountCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		s.logger.ErrorContext(ctx, "dropping malformed verification command",
			"error", err, "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	bearer, index, err := s.pool.Acquire(ctx)
	if err != nil {
		// Pool exhaustion is an infrastructure failure; no result is
		// published and the command is redelivered.
		return err
	}

	items, err := s.api.ListContent(ctx, bearer, cmd.AccountID)
	if errors.Is(err, platformapi.ErrUnauthorized) {
		bearer, _, err = s.pool.Rotate(ctx, index)
		if err != nil {
			return err
		}
		items, err = s.api.ListContent(ctx, bearer, cmd.AccountID)
		if errors.Is(err, platformapi.ErrUnauthorized) {
			// The rotated credential was also rejected; treat it as a
			// terminal platform failure rather than rotating forever.
			return s.publishFailure(ctx, msg, cmd, errorVerificationFailed)
		}
	}
	switch {
	case err == nil:
		s.observe(ctx, nil)
	case errors.Is(err, platformapi.ErrProfileNotFound):
		s.observe(ctx, nil)
		return s.publishFailure(ctx, msg, cmd, ErrorProfileNotFound)
	case errors.Is(err, platformapi.ErrUnexpectedStatus):
		s.observe(ctx, nil)
		return s.publishFailure(ctx, msg, cmd, errorVerificationFailed)
	default:
		// Transport failure, let the bus retry.
		s.observe(ctx, err)
		return err
	}

	if item, found := findToken(items, cmd.Token); found {
		return s.publishResult(ctx, msg, messages.VerifyAccountResult{
			UserID:    cmd.UserID,
			AccountID: cmd.AccountID,
			Verified:  true,
			Proof:     &item.ID,
		}, "verified")
	}
	return s.publishResult(ctx, msg, messages.VerifyAccountResult{
		UserID:    cmd.UserID,
		AccountID: cmd.AccountID,
	}, "no_match")
}

// findToken scans item names and descriptions case-insensitively for the
// challenge token. First match wins.
func findToken(items []platformapi.Item, token string) (platformapi.Item, bool) {
	needle := strings.ToLower(token)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Name), needle) ||
			strings.Contains(strings.ToLower(item.Description), needle) {
			return item, true
		}
	}
	return platformapi.Item{}, false
}

func (s *Service) publishFailure(ctx context.Context, msg *consumer.Message, cmd messages.VerifyAccountCommand, reason string) error {
	return s.publishResult(ctx, msg, messages.VerifyAccountResult{
		UserID:    cmd.UserID,
		AccountID: cmd.AccountID,
		Error:     &reason,
	}, "failed")
}

func (s *Service) publishResult(ctx context.Context, msg *consumer.Message, result messages.VerifyAccountResult, outcome string) error {
	value, err := json.Marshal(result)
	if err != nil {
		return err
	}
	headers := map[string]string{
		messages.HeaderCorrelationID: msg.Headers[messages.HeaderCorrelationID],
	}
	if err := s.publisher.Publish(ctx, messages.TopicVerifyResult, []byte(result.AccountID), value, headers); err != nil {
		return err
	}
	checksTotal.WithLabelValues(outcome).Inc()
	s.logger.InfoContext(ctx, "verification checked",
		"user_id", result.UserID.String(),
		"account_id", result.AccountID,
		"outcome", outcome,
	)
	return nil
}
