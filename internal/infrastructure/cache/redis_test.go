package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// redisTestClient connects to BRIDGE_TEST_REDIS_ADDR or skips the test
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("BRIDGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BRIDGE_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisTokenCache(t *testing.T) {
	client := redisTestClient(t)
	ctx := context.Background()
	cache := NewRedisTokenCache(client, "test:token:"+uuid.NewString()+":")

	token, err := cache.Get(ctx, integration.PlatformCodeAvito)
	require.NoError(t, err)
	assert.Nil(t, token)

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, cache.Set(ctx, integration.PlatformCodeAvito, &integration.AccessToken{Value: "tok", ExpiresAt: expires}))

	token, err = cache.Get(ctx, integration.PlatformCodeAvito)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "tok", token.Value)
	assert.True(t, expires.Equal(token.ExpiresAt))

	require.NoError(t, cache.Set(ctx, integration.PlatformCodeAvito, &integration.AccessToken{Value: "no-expiry"}))
	token, err = cache.Get(ctx, integration.PlatformCodeAvito)
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestRedisIdempotencyStore(t *testing.T) {
	client := redisTestClient(t)
	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, "test:delivery:"+uuid.NewString()+":")

	isNew, err := store.MarkProcessed(ctx, "c1:m1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "c1:m1", time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, "c1:m1")
	require.NoError(t, err)
	assert.True(t, processed)
}
