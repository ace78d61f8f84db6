package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/domain/shared"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// DefaultWebhookDedupTTL is how long a delivered webhook key is remembered
const DefaultWebhookDedupTTL = 24 * time.Hour

// WebhookIngestService stores messages pushed by the platform.
// The idempotency store is only a fast path; the unique (chat, external id)
// key decides whether a delivery is new.
type WebhookIngestService struct {
	credentials *CredentialStore
	chats       integration.ChatRepository
	messages    integration.MessageRepository
	dedup       shared.IdempotencyStore
	dedupTTL    time.Duration
	now         func() time.Time
	publisher   integration.MessageEventPublisher
	metrics     *telemetry.BridgeMetrics
}

// NewWebhookIngestService creates a new WebhookIngestService
func NewWebhookIngestService(
	credentials *CredentialStore,
	chats integration.ChatRepository,
	messages integration.MessageRepository,
	dedup shared.IdempotencyStore,
	dedupTTL time.Duration,
) *WebhookIngestService {
	if dedupTTL <= 0 {
		dedupTTL = DefaultWebhookDedupTTL
	}
	return &WebhookIngestService{
		credentials: credentials,
		chats:       chats,
		messages:    messages,
		dedup:       dedup,
		dedupTTL:    dedupTTL,
		now:         time.Now,
	}
}

// SetEventPublisher sets the publisher for message-observed events
func (s *WebhookIngestService) SetEventPublisher(p integration.MessageEventPublisher) {
	s.publisher = p
}

// SetMetrics sets the bridge metrics collector
func (s *WebhookIngestService) SetMetrics(m *telemetry.BridgeMetrics) {
	s.metrics = m
}

// webhookKey identifies one delivered message in the idempotency store
func (s *WebhookIngestService) webhookKey(msg integration.RemoteMessage) string {
	return fmt.Sprintf("webhook:%s:%s:%s", s.credentials.Platform(), msg.ChatID, msg.ID)
}

// IngestEvent stores the message carried by event.
// Only text message events are stored; anything else is reported as ignored.
// Redelivered messages are reported as duplicates and change nothing.
// Store failures are returned so the caller can refuse the delivery.
func (s *WebhookIngestService) IngestEvent(ctx context.Context, event integration.WebhookEvent) (*integration.IngestResult, error) {
	platform := s.credentials.Platform()
	ctx = logger.WithPlatform(ctx, platform.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook_ingest", "ingest_event",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()),
		telemetry.WithAttribute(telemetry.SpanAttrChatExternalID, event.Message.ChatID),
		telemetry.WithAttribute(telemetry.SpanAttrMessageExternal, event.Message.ID),
	)
	defer span.End()

	log := logger.L(ctx).With(
		zap.String("chat_external_id", event.Message.ChatID),
		zap.String("message_external_id", event.Message.ID),
	)

	result, err := s.ingest(ctx, log, event)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordWebhookEvent(ctx, platform.String(), "error")
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrIngestOutcome, string(result.Outcome))
	switch result.Outcome {
	case integration.IngestOutcomeDuplicate:
		telemetry.AddEvent(span, telemetry.EventDuplicateSkipped,
			telemetry.SpanAttrMessageExternal, event.Message.ID)
	case integration.IngestOutcomeStored:
		telemetry.SetOK(span)
	}
	s.metrics.RecordWebhookEvent(ctx, platform.String(), string(result.Outcome))
	return result, nil
}

func (s *WebhookIngestService) ingest(ctx context.Context, log *logger.ContextLogger, event integration.WebhookEvent) (*integration.IngestResult, error) {
	if !event.IsTextMessage() {
		log.Debug("Ignoring webhook event", zap.String("event_type", event.Type), zap.String("content_type", event.Message.Type))
		return &integration.IngestResult{Outcome: integration.IngestOutcomeIgnored}, nil
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	key := s.webhookKey(event.Message)
	if s.dedup != nil {
		seen, err := s.dedup.IsProcessed(ctx, key)
		if err != nil {
			log.Warn("Idempotency check failed, falling back to store constraint", zap.Error(err))
		} else if seen {
			log.Debug("Webhook delivery already processed")
			return &integration.IngestResult{Outcome: integration.IngestOutcomeDuplicate}, nil
		}
	}

	now := s.now()
	platform := s.credentials.Platform()

	candidate, err := integration.NewChatFromWebhook(platform, event.Message, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrInvalidWebhookEvent, err)
	}
	chat, created, err := s.chats.FindOrCreate(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("store chat: %w", err)
	}
	if created {
		log.Info("Chat created from webhook", zap.String("chat_id", chat.ID.String()))
	}

	// the account id is read fresh on every delivery so a self-correction made
	// by a concurrent sync is honoured
	accountID, err := s.credentials.AccountID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read account id: %w", err)
	}
	msg, err := integration.NewMessageFromRemote(chat.ID, event.Message, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrInvalidWebhookEvent, err)
	}

	inserted, err := s.messages.InsertIfAbsent(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	if !inserted {
		s.markProcessed(ctx, log, key)
		log.Debug("Webhook message already stored")
		return &integration.IngestResult{
			Outcome:     integration.IngestOutcomeDuplicate,
			ChatID:      chat.ID,
			ChatCreated: created,
		}, nil
	}

	unread := 0
	if msg.Sender == integration.SenderClient {
		unread = 1
	}
	if err := s.chats.TouchActivity(ctx, chat.ID, msg.Text, msg.CreatedAt, unread); err != nil {
		return nil, fmt.Errorf("update chat activity: %w", err)
	}
	s.markProcessed(ctx, log, key)

	publishObserved(ctx, s.publisher, chat, []*integration.Message{msg}, integration.SourceWebhook, now)

	log.Info("Webhook message stored",
		zap.String("chat_id", chat.ID.String()),
		zap.String("sender", msg.Sender.String()),
	)
	return &integration.IngestResult{
		Outcome:     integration.IngestOutcomeStored,
		ChatID:      chat.ID,
		ChatCreated: created,
		Message:     msg,
	}, nil
}

func (s *WebhookIngestService) markProcessed(ctx context.Context, log *logger.ContextLogger, key string) {
	if s.dedup == nil {
		return
	}
	if _, err := s.dedup.MarkProcessed(ctx, key, s.dedupTTL); err != nil {
		log.Warn("Failed to record webhook delivery", zap.Error(err))
	}
}
