//go:build integration

package cache

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

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLeaseStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	first := NewRedisLeaseStoreWithClient(client)
	second := NewRedisLeaseStoreWithClient(client)

	ok, err := first.Acquire(ctx, "claimsync:lease:receipt:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, "claimsync:lease:receipt:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the owner's release frees the key
	require.NoError(t, second.Release(ctx, "claimsync:lease:receipt:7"))
	ok, err = second.Acquire(ctx, "claimsync:lease:receipt:7", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx, "claimsync:lease:receipt:7"))
	ok, err = second.Acquire(ctx, "claimsync:lease:receipt:7", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.PTTL(ctx, "claimsync:lease:receipt:7").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
