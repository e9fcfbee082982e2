// Package token persists challenge tokens in a keyed secret store. Tokens are
// opaque secrets bound to (user, provider, name); the provider namespaces the
// secret class and the name is derived deterministically from the account and
// platform so the checker can locate the token from a message header alone.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/sentinel"
)

// ProviderAccountChallenge is the provider under which account ownership
// challenge tokens are stored.
const ProviderAccountChallenge = "account-challenge"

// Name derives the deterministic secret name for an account/platform pair.
func Name(platform, accountID string) string {
	return fmt.Sprintf("%s-%s", platform, accountID)
}

const tokenKeyPrefix = "auth-token:"

func key(userID id.UserID, provider, name string) string {
	return fmt.Sprintf("%s%s:%s:%s", tokenKeyPrefix, userID, provider, name)
}

// RedisStore is a Redis-backed secret store for challenge tokens. Tokens carry
// no TTL: a minted token is reused until verification succeeds or the account
// is unlinked.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed token store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// GetAuthenticationToken returns the stored token, or sentinel.ErrNotFound.
func (s *RedisStore) GetAuthenticationToken(ctx context.Context, userID id.UserID, provider, name string) (string, error) {
	value, err := s.client.Get(ctx, key(userID, provider, name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return value, nil
}

// SetAuthenticationToken stores the token under the composite key.
func (s *RedisStore) SetAuthenticationToken(ctx context.Context, userID id.UserID, provider, name, value string) error {
	if err := s.client.Set(ctx, key(userID, provider, name), value, 0).Err(); err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	return nil
}

// RemoveAuthenticationToken deletes the token. Removing an absent token is not
// an error.
func (s *RedisStore) RemoveAuthenticationToken(ctx context.Context, userID id.UserID, provider, name string) error {
	if err := s.client.Del(ctx, key(userID, provider, name)).Err(); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}
