//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisHintStore(t *testing.T) {
	ctx := context.Background()
	store := NewRedisHintStore(newRedisClient(t), "test:hint:")
	actor := uuid.New()

	_, ok, err := store.Get(ctx, actor)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, actor, sampleIntrospection(actor), time.Minute))
	got, ok, err := store.Get(ctx, actor)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, actor, got.ActorID)
	assert.Equal(t, []string{"salon"}, got.Organizations[0].Apps)

	require.NoError(t, store.Invalidate(ctx, actor))
	_, ok, err = store.Get(ctx, actor)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKeyLock(t *testing.T) {
	ctx := context.Background()
	lock := NewRedisKeyLock(newRedisClient(t), 10*time.Millisecond, 3)

	release, ok, err := lock.Acquire(ctx, "org:INV-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = lock.Acquire(ctx, "org:INV-1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held key is not obtained")

	release(ctx)
	release2, ok, err := lock.Acquire(ctx, "org:INV-1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	release2(ctx)
}
