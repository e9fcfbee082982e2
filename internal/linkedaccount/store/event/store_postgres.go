package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tunelink/internal/linkedaccount/models"
	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/sentinel"
)

// uniqueViolation is the PostgreSQL error code raised when two appends race
// for the same (stream, sequence) slot.
const uniqueViolation = "23505"

// appendRetries bounds the conditional-write retry loop. Losing the race this
// many times in a row means the stream is under pathological contention and
// the caller should see a conflict instead of an unbounded loop.
const appendRetries = 5

// PostgresStore persists the event log in PostgreSQL. Sequence assignment is
// server-checked: the insert computes MAX(sequence)+1 for the stream and a
// unique index turns lost races into a retryable 23505 instead of a silent
// drop or duplicate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed event store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append persists the event with the next sequence for its stream. A
// transaction-scoped advisory lock serializes appends per stream; the unique
// index plus a bounded retry loop catches anything that still races through.
// Exhausting the retries surfaces sentinel.ErrConflict rather than dropping
// the event.
func (s *PostgresStore) Append(ctx context.Context, req models.AppendRequest) (models.Event, error) {
	for attempt := 0; attempt < appendRetries; attempt++ {
		event, err := s.appendOnce(ctx, req)
		if err == nil {
			return event, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			continue // lost the sequence race, re-read and retry
		}
		return models.Event{}, fmt.Errorf("append event: %w", err)
	}

	return models.Event{}, fmt.Errorf("append event after %d attempts: %w", appendRetries, sentinel.ErrConflict)
}

func (s *PostgresStore) appendOnce(ctx context.Context, req models.AppendRequest) (models.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Event{}, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	streamKey := fmt.Sprintf("%s/%s/%s", req.AccountID, req.Platform, req.UserID)
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, streamKey); err != nil {
		return models.Event{}, err
	}

	event := models.Event{
		ID:            id.NewEventID(),
		AccountID:     req.AccountID,
		UserID:        req.UserID,
		Platform:      req.Platform,
		Type:          req.Type,
		CorrelationID: req.CorrelationID,
		Payload:       req.Payload,
		Timestamp:     time.Now().UTC().Truncate(time.Second),
	}

	query := `
		INSERT INTO linked_account_events
			(id, account_id, user_id, platform, event_type, sequence, correlation_id, payload, created_at)
		SELECT $1, $2, $3, $4, $5,
			COALESCE(MAX(sequence), 0) + 1,
			$6, $7, $8
		FROM linked_account_events
		WHERE account_id = $2 AND user_id = $3 AND platform = $4
		RETURNING sequence
	`
	if err := tx.QueryRowContext(ctx, query,
		uuid.UUID(event.ID),
		event.AccountID,
		uuid.UUID(event.UserID),
		string(event.Platform),
		string(event.Type),
		event.CorrelationID,
		nullableBytes(event.Payload),
		event.Timestamp,
	).Scan(&event.Sequence); err != nil {
		return models.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Event{}, err
	}
	return event, nil
}

// ListByStream loads the full stream ordered by sequence, then timestamp.
func (s *PostgresStore) ListByStream(ctx context.Context, accountID string, platform models.Platform, userID id.UserID) ([]models.Event, error) {
	query := `
		SELECT id, account_id, user_id, platform, event_type, sequence, correlation_id, payload, created_at
		FROM linked_account_events
		WHERE account_id = $1 AND user_id = $2 AND platform = $3
		ORDER BY sequence ASC, created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, accountID, uuid.UUID(userID), string(platform))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (models.Event, error) {
	var (
		event         models.Event
		eventID       uuid.UUID
		userID        uuid.UUID
		platform      string
		eventType     string
		correlationID sql.NullString
		payload       []byte
	)
	if err := rows.Scan(&eventID, &event.AccountID, &userID, &platform, &eventType,
		&event.Sequence, &correlationID, &payload, &event.Timestamp); err != nil {
		return models.Event{}, fmt.Errorf("scan event: %w", err)
	}
	event.ID = id.EventID(eventID)
	event.UserID = id.UserID(userID)
	event.Platform = models.Platform(platform)
	event.Type = models.EventType(eventType)
	event.CorrelationID = correlationID.String
	event.Payload = payload
	return event, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
