package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// TokenBroker hands out access tokens, reusing a cached token until it is
// within skew of its expiry
type TokenBroker struct {
	source  integration.TokenSource
	cache   integration.TokenCache
	skew    time.Duration
	now     func() time.Time
	metrics *telemetry.BridgeMetrics
}

// NewTokenBroker creates a new TokenBroker
func NewTokenBroker(source integration.TokenSource, cache integration.TokenCache, skew time.Duration) *TokenBroker {
	return &TokenBroker{
		source: source,
		cache:  cache,
		skew:   skew,
		now:    time.Now,
	}
}

// SetMetrics sets the bridge metrics collector
func (b *TokenBroker) SetMetrics(m *telemetry.BridgeMetrics) {
	b.metrics = m
}

// AcquireToken returns a usable token for platform.
// Cache read and write failures only cost an extra exchange; they are logged.
func (b *TokenBroker) AcquireToken(ctx context.Context, platform integration.PlatformCode, creds integration.Credentials) (*integration.AccessToken, error) {
	log := logger.L(ctx)

	cached, err := b.cache.Get(ctx, platform)
	if err != nil {
		log.Warn("Token cache read failed", zap.String("platform", platform.String()), zap.Error(err))
	}
	if cached.UsableAt(b.now(), b.skew) {
		return cached, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "token_broker", "exchange",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()))
	defer span.End()

	token, err := b.source.Token(ctx, creds)
	if err != nil {
		telemetry.RecordError(span, err)
		b.metrics.RecordTokenRefresh(ctx, platform.String(), false)
		if !errors.Is(err, integration.ErrAuthFailed) {
			err = fmt.Errorf("%w: %w", integration.ErrAuthFailed, err)
		}
		return nil, err
	}
	b.metrics.RecordTokenRefresh(ctx, platform.String(), true)
	telemetry.AddEvent(span, telemetry.EventTokenIssued, "cacheable", !token.ExpiresAt.IsZero())

	if err := b.cache.Set(ctx, platform, token); err != nil {
		log.Warn("Token cache write failed", zap.String("platform", platform.String()), zap.Error(err))
	}
	return token, nil
}

// Invalidate drops the cached token of platform
func (b *TokenBroker) Invalidate(ctx context.Context, platform integration.PlatformCode) {
	if err := b.cache.Invalidate(ctx, platform); err != nil {
		logger.L(ctx).Warn("Token cache invalidation failed",
			zap.String("platform", platform.String()), zap.Error(err))
	}
}

// InvalidateOnAuthError drops the cached token when err reports a rejected token
func (b *TokenBroker) InvalidateOnAuthError(ctx context.Context, platform integration.PlatformCode, err error) {
	if errors.Is(err, integration.ErrAuthFailed) {
		b.Invalidate(ctx, platform)
	}
}
