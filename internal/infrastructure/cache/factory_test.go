package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/backend/internal/infrastructure/config"
)

func TestStoreFactory_CreateStores(t *testing.T) {
	t.Run("redis disabled uses memory", func(t *testing.T) {
		stores, err := NewStoreFactory(config.RedisConfig{Enabled: false}).CreateStores(context.Background())
		require.NoError(t, err)
		defer stores.Close()

		assert.False(t, stores.UsesRedis())
		assert.IsType(t, &InMemoryTokenCache{}, stores.Tokens)
		assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Deliveries)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		stores, err := NewStoreFactory(cfg).CreateStores(context.Background())
		require.NoError(t, err)
		defer stores.Close()

		assert.False(t, stores.UsesRedis())
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		_, err := NewStoreFactory(cfg, WithInMemoryFallback(false)).CreateStores(context.Background())
		assert.Error(t, err)
	})
}
