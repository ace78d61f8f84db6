package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatbridge/backend/internal/domain/integration"
)

const defaultTokenKeyPrefix = "bridge:token:"

// RedisTokenCache shares platform tokens between server replicas.
// Keys expire together with the token they hold.
type RedisTokenCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

type cachedToken struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRedisTokenCache creates a token cache over an existing client
func NewRedisTokenCache(client redis.UniversalClient, keyPrefix string) *RedisTokenCache {
	if keyPrefix == "" {
		keyPrefix = defaultTokenKeyPrefix
	}
	return &RedisTokenCache{client: client, keyPrefix: keyPrefix}
}

// Get returns the cached token or nil on a miss
func (c *RedisTokenCache) Get(ctx context.Context, platform integration.PlatformCode) (*integration.AccessToken, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+platform.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached token: %w", err)
	}

	var cached cachedToken
	if err := json.Unmarshal(data, &cached); err != nil {
		// unreadable entries are treated as a miss and overwritten on the next Set
		return nil, nil
	}
	return &integration.AccessToken{Value: cached.Value, ExpiresAt: cached.ExpiresAt}, nil
}

// Set stores the token until its expiry. Tokens without expiry are not stored.
func (c *RedisTokenCache) Set(ctx context.Context, platform integration.PlatformCode, token *integration.AccessToken) error {
	if token == nil || token.ExpiresAt.IsZero() {
		return c.Invalidate(ctx, platform)
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return c.Invalidate(ctx, platform)
	}

	data, err := json.Marshal(cachedToken{Value: token.Value, ExpiresAt: token.ExpiresAt})
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.keyPrefix+platform.String(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache token: %w", err)
	}
	return nil
}

// Invalidate drops the token of the platform
func (c *RedisTokenCache) Invalidate(ctx context.Context, platform integration.PlatformCode) error {
	if err := c.client.Del(ctx, c.keyPrefix+platform.String()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

var _ integration.TokenCache = (*RedisTokenCache)(nil)
