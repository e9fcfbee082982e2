//go:build integration

package token_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tunelink/internal/linkedaccount/store/token"
	id "tunelink/pkg/domain"
	"tunelink/pkg/platform/sentinel"
	"tunelink/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *token.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = token.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestMissingTokenReturnsNotFound() {
	ctx := context.Background()

	_, err := s.store.GetAuthenticationToken(ctx, id.UserID(uuid.New()), token.ProviderAccountChallenge, token.Name("spotify", "a1"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSetGetRemove() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	name := token.Name("spotify", "artist-1")

	s.Require().NoError(s.store.SetAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name, "tunelink-spotify-abc"))

	value, err := s.store.GetAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name)
	s.Require().NoError(err)
	s.Equal("tunelink-spotify-abc", value)

	s.Require().NoError(s.store.RemoveAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name))

	_, err = s.store.GetAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestKeyIsolation() {
	ctx := context.Background()
	userA := id.UserID(uuid.New())
	userB := id.UserID(uuid.New())
	name := token.Name("spotify", "shared-account")

	s.Require().NoError(s.store.SetAuthenticationToken(ctx, userA, token.ProviderAccountChallenge, name, "token-a"))
	s.Require().NoError(s.store.SetAuthenticationToken(ctx, userB, token.ProviderAccountChallenge, name, "token-b"))

	value, err := s.store.GetAuthenticationToken(ctx, userA, token.ProviderAccountChallenge, name)
	s.Require().NoError(err)
	s.Equal("token-a", value)

	s.Require().NoError(s.store.RemoveAuthenticationToken(ctx, userA, token.ProviderAccountChallenge, name))

	value, err = s.store.GetAuthenticationToken(ctx, userB, token.ProviderAccountChallenge, name)
	s.Require().NoError(err)
	s.Equal("token-b", value)
}

func (s *RedisStoreSuite) TestRemoveAbsentTokenIsNotAnError() {
	ctx := context.Background()

	s.Require().NoError(s.store.RemoveAuthenticationToken(ctx, id.UserID(uuid.New()), token.ProviderAccountChallenge, token.Name("deezer", "gone")))
}

func (s *RedisStoreSuite) TestOverwriteKeepsLatest() {
	ctx := context.Background()
	userID := id.UserID(uuid.New())
	name := token.Name("soundcloud", "artist-2")

	s.Require().NoError(s.store.SetAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name, "first"))
	s.Require().NoError(s.store.SetAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name, "second"))

	value, err := s.store.GetAuthenticationToken(ctx, userID, token.ProviderAccountChallenge, name)
	s.Require().NoError(err)
	s.Equal("second", value)
}
