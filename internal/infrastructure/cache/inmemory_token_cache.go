package cache

import (
	"context"
	"sync"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// InMemoryTokenCache keeps one token per platform in process memory.
// Suitable for single-instance deployments and tests.
type InMemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[integration.PlatformCode]integration.AccessToken
}

// NewInMemoryTokenCache creates an empty cache
func NewInMemoryTokenCache() *InMemoryTokenCache {
	return &InMemoryTokenCache{
		tokens: make(map[integration.PlatformCode]integration.AccessToken),
	}
}

// Get returns a copy of the cached token or nil on a miss
func (c *InMemoryTokenCache) Get(ctx context.Context, platform integration.PlatformCode) (*integration.AccessToken, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token, ok := c.tokens[platform]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

// Set replaces the token of the platform
func (c *InMemoryTokenCache) Set(ctx context.Context, platform integration.PlatformCode, token *integration.AccessToken) error {
	if token == nil {
		return c.Invalidate(ctx, platform)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[platform] = *token
	return nil
}

// Invalidate drops the token of the platform
func (c *InMemoryTokenCache) Invalidate(ctx context.Context, platform integration.PlatformCode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, platform)
	return nil
}

var _ integration.TokenCache = (*InMemoryTokenCache)(nil)
