package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// OutboundSender posts shop replies to the platform and records them locally
type OutboundSender struct {
	credentials *CredentialStore
	tokens      *TokenBroker
	identity    *IdentityResolver
	api         integration.MarketplaceAPI
	chats       integration.ChatRepository
	messages    integration.MessageRepository
	now         func() time.Time
	publisher   integration.MessageEventPublisher
	metrics     *telemetry.BridgeMetrics
}

// NewOutboundSender creates a new OutboundSender
func NewOutboundSender(
	credentials *CredentialStore,
	tokens *TokenBroker,
	identity *IdentityResolver,
	api integration.MarketplaceAPI,
	chats integration.ChatRepository,
	messages integration.MessageRepository,
) *OutboundSender {
	return &OutboundSender{
		credentials: credentials,
		tokens:      tokens,
		identity:    identity,
		api:         api,
		chats:       chats,
		messages:    messages,
		now:         time.Now,
	}
}

// SetEventPublisher sets the publisher for message-observed events
func (s *OutboundSender) SetEventPublisher(p integration.MessageEventPublisher) {
	s.publisher = p
}

// SetMetrics sets the bridge metrics collector
func (s *OutboundSender) SetMetrics(m *telemetry.BridgeMetrics) {
	s.metrics = m
}

// SendMessage sends text into the local chat chatID.
// Nothing is written locally unless the platform accepted the message.
func (s *OutboundSender) SendMessage(ctx context.Context, chatID uuid.UUID, text string) (*integration.SendResult, error) {
	platform := s.credentials.Platform()
	ctx = logger.WithPlatform(ctx, platform.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "outbound_sender", "send_message",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()))
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, integration.ErrEmptyMessageText
	}

	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrChatExternalID, chat.ExternalID)
	log := logger.L(ctx).With(
		zap.String("chat_id", chat.ID.String()),
		zap.String("chat_external_id", chat.ExternalID),
	)

	cfg, err := s.credentials.Load(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	token, err := s.tokens.AcquireToken(ctx, platform, cfg.Credentials())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	accountID := cfg.AccountID
	if accountID == "" {
		accountID = s.identity.ResolveAccountID(ctx, token.Value, accountID)
	}

	sent, err := s.api.SendTextMessage(ctx, token.Value, accountID, chat.ExternalID, text)
	if err != nil {
		telemetry.RecordError(span, err)
		s.tokens.InvalidateOnAuthError(ctx, platform, err)
		s.metrics.RecordMessageSent(ctx, platform.String(), false)
		log.Error("Platform rejected outbound message", zap.Error(err))
		if !errors.Is(err, integration.ErrSendFailed) {
			err = fmt.Errorf("%w: %w", integration.ErrSendFailed, err)
		}
		return nil, err
	}
	s.metrics.RecordMessageSent(ctx, platform.String(), true)

	now := s.now()
	msg := integration.NewOutboundMessage(chat.ID, sent.ID, text, now)
	if msg.HasExternalID() {
		// a webhook echo of the same message may already be stored
		inserted, err := s.messages.InsertIfAbsent(ctx, msg)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("record sent message: %w", err)
		}
		if !inserted {
			log.Debug("Sent message already stored by webhook", zap.String("message_external_id", msg.ExternalID))
		}
	} else if err := s.messages.Create(ctx, msg); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("record sent message: %w", err)
	}

	if err := s.chats.TouchActivity(ctx, chat.ID, text, now, 0); err != nil {
		log.Warn("Failed to update chat activity after send", zap.Error(err))
	}

	publishObserved(ctx, s.publisher, chat, []*integration.Message{msg}, integration.SourceAPI, now)

	telemetry.SetOK(span)
	log.Info("Outbound message sent", zap.String("message_external_id", msg.ExternalID))
	return &integration.SendResult{Message: msg, Response: sent.Raw}, nil
}
