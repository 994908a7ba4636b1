package bookmark

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	store, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		mr.Close()
		t.Fatalf("failed to create redis store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store, mr
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url")
	assert.Error(t, err)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := setupRedisStoreTest(t)

	_, ok, err := store.Get(context.Background(), ExportKey)
	require.NoError(t, err)
	assert.False(t, ok, "missing bookmark should not be an error")
}

func TestRedisStore_SetGetRoundTrip(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	ctx := context.Background()

	ts := time.Date(2023, 6, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, ExportKey, ts))

	got, ok, err := store.Get(ctx, ExportKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(ts))
}

func TestRedisStore_NoExpiry(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ExportKey, time.Now()))

	ttl := mr.TTL(ExportKey)
	assert.Equal(t, time.Duration(0), ttl, "bookmark must not expire")
}

func TestRedisStore_GetCorruptValue(t *testing.T) {
	store, mr := setupRedisStoreTest(t)

	mr.Set(ExportKey, "garbage")
	_, _, err := store.Get(context.Background(), ExportKey)
	assert.Error(t, err)
}

func TestRedisStore_SetIfLater(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	ctx := context.Background()

	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	advanced, err := store.SetIfLater(ctx, ExportKey, base)
	require.NoError(t, err)
	assert.True(t, advanced, "first write always advances")

	advanced, err = store.SetIfLater(ctx, ExportKey, base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, advanced)

	// Backward and equal writes must be rejected.
	for _, ts := range []time.Time{base, base.Add(time.Hour)} {
		advanced, err = store.SetIfLater(ctx, ExportKey, ts)
		require.NoError(t, err)
		assert.False(t, advanced)
	}

	got, ok, err := store.Get(ctx, ExportKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(base.Add(time.Hour)))
}

func TestMemoryStore_Monotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	advanced, err := store.SetIfLater(ctx, "k", base)
	require.NoError(t, err)
	assert.True(t, advanced)

	advanced, err = store.SetIfLater(ctx, "k", base.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, advanced)

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(base))
}
