package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/domain/shared"
	"github.com/chatbridge/backend/internal/infrastructure/config"
)

// Stores bundles the caches used by the bridge
type Stores struct {
	Tokens     integration.TokenCache
	Deliveries shared.IdempotencyStore
	client     *redis.Client
}

// Close releases the Redis connection and stops in-memory sweepers
func (s *Stores) Close() error {
	if s.Deliveries != nil {
		_ = s.Deliveries.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UsesRedis reports whether the stores are shared through Redis
func (s *Stores) UsesRedis() bool {
	return s.client != nil
}

// StoreFactory creates token caches and delivery stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStores returns Redis-backed stores when Redis is enabled and
// reachable, in-memory stores otherwise
func (f *StoreFactory) CreateStores(ctx context.Context) (*Stores, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory token cache and delivery store")
		return f.CreateInMemoryStores(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required but unavailable: %w", err)
		}
		f.logger.Warn("redis unavailable, falling back to in-memory stores; "+
			"tokens and webhook deliveries will not be shared between replicas",
			zap.Error(err),
		)
		return f.CreateInMemoryStores(), nil
	}

	f.logger.Info("using redis token cache and delivery store", zap.String("addr", f.redisConfig.Addr()))
	return &Stores{
		Tokens:     NewRedisTokenCache(client, ""),
		Deliveries: NewRedisIdempotencyStore(client, ""),
		client:     client,
	}, nil
}

// CreateInMemoryStores returns process-local stores
func (f *StoreFactory) CreateInMemoryStores() *Stores {
	return &Stores{
		Tokens:     NewInMemoryTokenCache(),
		Deliveries: NewInMemoryIdempotencyStore(5 * time.Minute),
	}
}
