package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	lmodels "tunelink/internal/linkedaccount/models"
	"tunelink/internal/user/models"
	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/sentinel"
)

// PostgresStore persists user aggregates across the users and
// user_account_refs tables. Updates replace the ref set transactionally so a
// failed write never leaves a half-applied aggregate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO users (id, email, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.ExecContext(ctx, query,
		uuid.UUID(user.ID), user.Email, user.DisplayName, user.CreatedAt, user.UpdatedAt,
	); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := replaceRefs(ctx, tx, user); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT id, email, display_name, created_at, updated_at FROM users WHERE id = $1`
	var (
		user models.User
		uid  uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID)).
		Scan(&uid, &user.Email, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.ID = id.UserID(uid)

	refs, err := s.db.QueryContext(ctx,
		`SELECT platform, account_id, profile_url FROM user_account_refs WHERE user_id = $1`,
		uuid.UUID(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("find user refs: %w", err)
	}
	defer refs.Close()

	for refs.Next() {
		var (
			platform string
			ref      models.AccountRef
		)
		if err := refs.Scan(&platform, &ref.AccountID, &ref.ProfileURL); err != nil {
			return nil, fmt.Errorf("scan user ref: %w", err)
		}
		ref.Platform = lmodels.Platform(platform)
		user.Accounts = append(user.Accounts, ref)
	}
	if err := refs.Err(); err != nil {
		return nil, fmt.Errorf("find user refs: %w", err)
	}
	return &user, nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET email = $2, display_name = $3, updated_at = $4 WHERE id = $1`,
		uuid.UUID(user.ID), user.Email, user.DisplayName, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	if err := replaceRefs(ctx, tx, user); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func replaceRefs(ctx context.Context, tx *sql.Tx, user *models.User) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_account_refs WHERE user_id = $1`, uuid.UUID(user.ID),
	); err != nil {
		return fmt.Errorf("replace user refs: %w", err)
	}
	for _, ref := range user.Accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_account_refs (user_id, platform, account_id, profile_url) VALUES ($1, $2, $3, $4)`,
			uuid.UUID(user.ID), string(ref.Platform), ref.AccountID, ref.ProfileURL,
		); err != nil {
			return fmt.Errorf("replace user refs: %w", err)
		}
	}
	return nil
}
