package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in -short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestCachedStore(t *testing.T) {
	storeContract(t, NewCachedStore(NewMemoryStore(), setupRedis(t), time.Minute))
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	primary := NewMemoryStore()
	s := NewCachedStore(primary, rdb, time.Minute)

	// Saved behind the cache's back: first load populates Redis.
	require.NoError(t, primary.SaveSnapshot(ctx, testSnapshot("rt")))
	_, err := s.LoadSnapshot(ctx, "rt")
	require.NoError(t, err)

	exists, err := rdb.Exists(ctx, snapshotKey("rt")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// A primary-only update is hidden until the cache entry is refreshed.
	stale := testSnapshot("rt")
	stale.Market.Tick = 1000
	require.NoError(t, primary.SaveSnapshot(ctx, stale))
	got, err := s.LoadSnapshot(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Market.Tick)

	// Saving through the cache refreshes it.
	require.NoError(t, s.SaveSnapshot(ctx, stale))
	got, err = s.LoadSnapshot(ctx, "rt")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.Market.Tick)
}

func TestCachedStore_MissPropagatesNotFound(t *testing.T) {
	s := NewCachedStore(NewMemoryStore(), setupRedis(t), time.Minute)
	_, err := s.LoadSnapshot(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
