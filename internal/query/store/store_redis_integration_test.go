//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vitalia/internal/query/store"
	"vitalia/pkg/platform/sentinel"
	"vitalia/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = store.NewRedisStore(s.redis.Client, 5*time.Minute)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	fetched := time.Now().UTC().Truncate(time.Millisecond)

	err := s.store.Set(ctx, "listings:all-active", store.Entry{
		Value:     []byte(`[{"ID":1}]`),
		FetchedAt: fetched,
	})
	s.Require().NoError(err)

	entry, err := s.store.Get(ctx, "listings:all-active")
	s.Require().NoError(err)
	s.Equal([]byte(`[{"ID":1}]`), entry.Value)
	s.True(entry.FetchedAt.Equal(fetched))
}

func (s *RedisStoreSuite) TestMissingKey() {
	_, err := s.store.Get(context.Background(), "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "profile:0xA", store.Entry{Value: []byte(`{}`), FetchedAt: time.Now()}))
	s.Require().NoError(s.store.Delete(ctx, "profile:0xA"))

	_, err := s.store.Get(ctx, "profile:0xA")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestKeysByPrefix() {
	ctx := context.Background()
	s.Require().NoError(s.store.Set(ctx, "listings:all-active", store.Entry{Value: []byte(`[]`), FetchedAt: time.Now()}))
	s.Require().NoError(s.store.Set(ctx, "listings:status:Open", store.Entry{Value: []byte(`[]`), FetchedAt: time.Now()}))
	s.Require().NoError(s.store.Set(ctx, "profile:0xA", store.Entry{Value: []byte(`{}`), FetchedAt: time.Now()}))

	keys, err := s.store.Keys(ctx, "listings:")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"listings:all-active", "listings:status:Open"}, keys)
}
