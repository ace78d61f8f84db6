package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// WebhookRegistrar subscribes the bridge callback URL to platform notifications
type WebhookRegistrar struct {
	credentials *CredentialStore
	tokens      *TokenBroker
	api         integration.MarketplaceAPI
	webhookURL  string
}

// NewWebhookRegistrar creates a new WebhookRegistrar
func NewWebhookRegistrar(credentials *CredentialStore, tokens *TokenBroker, api integration.MarketplaceAPI, webhookURL string) *WebhookRegistrar {
	return &WebhookRegistrar{
		credentials: credentials,
		tokens:      tokens,
		api:         api,
		webhookURL:  strings.TrimSpace(webhookURL),
	}
}

// RegisterWebhook returns the raw platform answer to the subscription request
func (r *WebhookRegistrar) RegisterWebhook(ctx context.Context) (json.RawMessage, error) {
	if r.webhookURL == "" {
		return nil, integration.ErrWebhookURLMissing
	}
	platform := r.credentials.Platform()
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook_registrar", "register_webhook",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()))
	defer span.End()

	cfg, err := r.credentials.Load(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	token, err := r.tokens.AcquireToken(ctx, platform, cfg.Credentials())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	raw, err := r.api.RegisterWebhook(ctx, token.Value, r.webhookURL)
	if err != nil {
		telemetry.RecordError(span, err)
		r.tokens.InvalidateOnAuthError(ctx, platform, err)
		if !errors.Is(err, integration.ErrWebhookRegistration) {
			err = fmt.Errorf("%w: %w", integration.ErrWebhookRegistration, err)
		}
		return nil, err
	}

	logger.L(ctx).Info("Webhook registered", zap.String("url", r.webhookURL))
	return raw, nil
}
