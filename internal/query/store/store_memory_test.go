package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalia/pkg/platform/sentinel"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "listings:all-active")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	fetched := time.Now()
	require.NoError(t, s.Set(ctx, "listings:all-active", Entry{Value: []byte(`[]`), FetchedAt: fetched}))

	entry, err := s.Get(ctx, "listings:all-active")
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), entry.Value)
	assert.Equal(t, fetched, entry.FetchedAt)

	require.NoError(t, s.Delete(ctx, "listings:all-active"))
	_, err = s.Get(ctx, "listings:all-active")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryStoreKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Set(ctx, "listings:all-active", Entry{}))
	require.NoError(t, s.Set(ctx, "listings:status:Open", Entry{}))
	require.NoError(t, s.Set(ctx, "profile:0xA", Entry{}))

	keys, err := s.Keys(ctx, "listings:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"listings:all-active", "listings:status:Open"}, keys)

	keys, err = s.Keys(ctx, "stats:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStoreDeleteMissingKeyIsNoop(t *testing.T) {
	assert.NoError(t, NewMemoryStore().Delete(context.Background(), "nope"))
}
