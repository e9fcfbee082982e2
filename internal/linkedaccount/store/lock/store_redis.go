// Package lock implements the distributed mutual-exclusion guard for
// verification initiation. The lock is a transient cache key set only if
// absent, with a bounded TTL; its presence means a verification attempt is in
// flight for that (user, account) pair.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var lockContention = promauto.NewCounter(prometheus.CounterOpts{
	Name: "tunelink_verification_lock_contention_total",
	Help: "Number of verification lock acquisitions refused because the lock was already held",
})

// RedisStore is the production lock store backed by Redis SET NX.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed lock store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Acquire sets the key if absent, with the given TTL. Returns false when the
// lock is already held by someone else.
func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	acquired, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		lockContention.Inc()
	}
	return acquired, nil
}

// Release deletes the key. Releasing an absent lock is not an error.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
