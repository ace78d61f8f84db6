package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// DefaultMessageWindow is the number of recent messages pulled per chat
const DefaultMessageWindow = 20

// MessageRelay mirrors the recent message window of one chat
type MessageRelay struct {
	api       integration.MarketplaceAPI
	messages  integration.MessageRepository
	tokens    *TokenBroker
	platform  integration.PlatformCode
	window    int
	now       func() time.Time
	publisher integration.MessageEventPublisher
	metrics   *telemetry.BridgeMetrics
}

// NewMessageRelay creates a new MessageRelay. A window <= 0 uses DefaultMessageWindow.
func NewMessageRelay(api integration.MarketplaceAPI, messages integration.MessageRepository, tokens *TokenBroker, platform integration.PlatformCode, window int) *MessageRelay {
	if window <= 0 {
		window = DefaultMessageWindow
	}
	return &MessageRelay{
		api:      api,
		messages: messages,
		tokens:   tokens,
		platform: platform,
		window:   window,
		now:      time.Now,
	}
}

// SetEventPublisher sets the publisher for MessageObserved events.
// A publisher that drops every event is ignored, which also skips the
// per-chat lookup of already stored messages.
func (r *MessageRelay) SetEventPublisher(p integration.MessageEventPublisher) {
	if d, ok := p.(integration.EventDropper); ok && d.DropsEvents() {
		r.publisher = nil
		return
	}
	r.publisher = p
}

// SetMetrics sets the bridge metrics collector
func (r *MessageRelay) SetMetrics(m *telemetry.BridgeMetrics) {
	r.metrics = m
}

// RelayMessages pulls the message window of chat and upserts it.
// A failed fetch is logged and swallowed; only store failures are returned.
func (r *MessageRelay) RelayMessages(ctx context.Context, token, accountID string, chat *integration.Chat) error {
	log := logger.L(ctx).With(zap.String("chat_external_id", chat.ExternalID))

	remote, err := r.api.ListMessages(ctx, token, accountID, chat.ExternalID, r.window)
	if err != nil {
		if r.tokens != nil {
			r.tokens.InvalidateOnAuthError(ctx, r.platform, err)
		}
		log.Warn("Message fetch failed, skipping chat", zap.Error(err))
		return nil
	}
	if len(remote) == 0 {
		return nil
	}

	now := r.now()
	batch := make([]*integration.Message, 0, len(remote))
	externalIDs := make([]string, 0, len(remote))
	for _, rm := range remote {
		msg, err := integration.NewMessageFromRemote(chat.ID, rm, accountID, now)
		if err != nil {
			log.Warn("Skipping invalid remote message",
				zap.String("message_external_id", rm.ID), zap.Error(err))
			continue
		}
		batch = append(batch, msg)
		if msg.HasExternalID() {
			externalIDs = append(externalIDs, msg.ExternalID)
		}
	}

	var existing map[string]struct{}
	if r.publisher != nil {
		existing, err = r.messages.ExistingExternalIDs(ctx, chat.ID, externalIDs)
		if err != nil {
			return fmt.Errorf("check existing messages of chat %s: %w", chat.ExternalID, err)
		}
		if existing == nil {
			existing = make(map[string]struct{})
		}
	}

	if err := r.messages.UpsertBatch(ctx, batch); err != nil {
		return fmt.Errorf("store messages of chat %s: %w", chat.ExternalID, err)
	}
	r.metrics.RecordMessagesRelayed(ctx, r.platform.String(), len(batch))

	if r.publisher != nil {
		fresh := make([]*integration.Message, 0, len(batch))
		for _, msg := range batch {
			if _, seen := existing[msg.ExternalID]; seen || !msg.HasExternalID() {
				continue
			}
			existing[msg.ExternalID] = struct{}{}
			fresh = append(fresh, msg)
		}
		publishObserved(ctx, r.publisher, chat, fresh, integration.SourcePull, now)
	}

	log.Debug("Messages relayed", zap.Int("count", len(batch)))
	return nil
}
