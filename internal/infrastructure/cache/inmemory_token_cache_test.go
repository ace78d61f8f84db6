package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/backend/internal/domain/integration"
)

func TestInMemoryTokenCache(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryTokenCache()

	token, err := cache.Get(ctx, integration.PlatformCodeAvito)
	require.NoError(t, err)
	assert.Nil(t, token)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, cache.Set(ctx, integration.PlatformCodeAvito, &integration.AccessToken{Value: "a", ExpiresAt: expires}))
	require.NoError(t, cache.Set(ctx, "other", &integration.AccessToken{Value: "b", ExpiresAt: expires}))

	token, err = cache.Get(ctx, integration.PlatformCodeAvito)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "a", token.Value)

	t.Run("one slot per platform", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, integration.PlatformCodeAvito, &integration.AccessToken{Value: "a2", ExpiresAt: expires}))
		token, _ := cache.Get(ctx, integration.PlatformCodeAvito)
		assert.Equal(t, "a2", token.Value)

		other, _ := cache.Get(ctx, "other")
		assert.Equal(t, "b", other.Value)
	})

	t.Run("returned token is a copy", func(t *testing.T) {
		token, _ := cache.Get(ctx, integration.PlatformCodeAvito)
		token.Value = "mutated"
		again, _ := cache.Get(ctx, integration.PlatformCodeAvito)
		assert.Equal(t, "a2", again.Value)
	})

	t.Run("invalidate", func(t *testing.T) {
		require.NoError(t, cache.Invalidate(ctx, integration.PlatformCodeAvito))
		token, err := cache.Get(ctx, integration.PlatformCodeAvito)
		require.NoError(t, err)
		assert.Nil(t, token)
	})
}
