// Package consumer folds verification results back into the event log. The
// handler is written for at-least-once delivery: every path is either
// idempotent or guarded by the projection's current status.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"tunelink/internal/linkedaccount/messages"
	"tunelink/internal/linkedaccount/metrics"
	"tunelink/internal/linkedaccount/models"
	"tunelink/internal/linkedaccount/projection"
	"tunelink/internal/linkedaccount/service"
	"tunelink/internal/platform/kafka/consumer"
	"tunelink/pkg/platform/sentinel"
)

// ResultHandler consumes VerifyAccountResult messages and appends the
// terminal facts for the stream.
type ResultHandler struct {
	events  service.EventStore
	users   service.UserStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewResultHandler(events service.EventStore, users service.UserStore, m *metrics.Metrics, logger *slog.Logger) *ResultHandler {
	return &ResultHandler{events: events, users: users, metrics: m, logger: logger}
}

// Handle folds one verification result into the log. Stale messages (unknown
// user, unlinked account, already verified stream) are absorbed as no-ops.
// Append failures leave the message uncommitted so the group redelivers it;
// appends already made are not rolled back and are absorbed on redelivery by
// the verified-status guard and the overwrite semantics of ProofAttached.
func (h *ResultHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	var result messages.VerifyAccountResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed verification result",
			"error", err, "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	user, err := h.users.FindByID(ctx, result.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			h.logger.WarnContext(ctx, "verification result for unknown user",
				"user_id", result.UserID.String(), "account_id", result.AccountID)
			return nil
		}
		return err
	}
	ref, ok := user.FindAccountByID(result.AccountID)
	if !ok {
		h.logger.WarnContext(ctx, "verification result for unlinked account",
			"user_id", result.UserID.String(), "account_id", result.AccountID)
		return nil
	}

	events, err := h.events.ListByStream(ctx, result.AccountID, ref.Platform, result.UserID)
	if err != nil {
		return err
	}
	state := projection.Project(events)
	if state == nil {
		h.logger.WarnContext(ctx, "verification result for empty stream",
			"user_id", result.UserID.String(), "account_id", result.AccountID)
		return nil
	}
	if state.Status == models.StatusVerified {
		return nil
	}

	correlationID := msg.Headers[messages.HeaderCorrelationID]
	if correlationID == "" {
		correlationID = state.CorrelationID
	}
	appendFact := func(eventType models.EventType, payload json.RawMessage) error {
		_, err := h.events.Append(ctx, models.AppendRequest{
			AccountID:     result.AccountID,
			UserID:        result.UserID,
			Platform:      ref.Platform,
			Type:          eventType,
			CorrelationID: correlationID,
			Payload:       payload,
		})
		return err
	}

	var errs []error
	if result.Proof != nil {
		payload, err := json.Marshal(models.ProofPayload{ItemID: *result.Proof})
		if err != nil {
			return err
		}
		if err := appendFact(models.EventProofAttached, payload); err != nil {
			errs = append(errs, err)
		}
	}

	if result.Verified {
		if err := appendFact(models.EventAccountVerified, nil); err != nil {
			errs = append(errs, err)
		}
		if err := appendFact(models.EventAccountLinked, nil); err != nil {
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			h.metrics.IncrementVerificationsVerified()
		}
	} else {
		var payload json.RawMessage
		if result.Error != nil {
			payload, err = json.Marshal(map[string]string{"error": *result.Error})
			if err != nil {
				return err
			}
		}
		if err := appendFact(models.EventProofInvalid, payload); err != nil {
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			h.metrics.IncrementVerificationsFailed()
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	h.logger.InfoContext(ctx, "verification result folded",
		"user_id", result.UserID.String(),
		"platform", ref.Platform.String(),
		"account_id", result.AccountID,
		"verified", result.Verified,
	)
	return nil
}
