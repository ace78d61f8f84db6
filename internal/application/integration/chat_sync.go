package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// DefaultChatPageSize is the number of chats pulled per sync
const DefaultChatPageSize = 20

// Failed item stages
const (
	StageChat     = "chat"
	StageMessages = "messages"
)

// ChatSyncService pulls the recent chat page of the shop account and mirrors
// each chat with its message window
type ChatSyncService struct {
	credentials *CredentialStore
	tokens      *TokenBroker
	identity    *IdentityResolver
	api         integration.MarketplaceAPI
	chats       integration.ChatRepository
	relay       *MessageRelay
	pageSize    int
	concurrency int
	now         func() time.Time
	metrics     *telemetry.BridgeMetrics
}

// ChatSyncOption configures a ChatSyncService
type ChatSyncOption func(*ChatSyncService)

// WithChatPageSize sets the number of chats requested per sync
func WithChatPageSize(n int) ChatSyncOption {
	return func(s *ChatSyncService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithRelayConcurrency processes up to n chats at once. 1 keeps the sync sequential.
func WithRelayConcurrency(n int) ChatSyncOption {
	return func(s *ChatSyncService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewChatSyncService creates a new ChatSyncService
func NewChatSyncService(
	credentials *CredentialStore,
	tokens *TokenBroker,
	identity *IdentityResolver,
	api integration.MarketplaceAPI,
	chats integration.ChatRepository,
	relay *MessageRelay,
	opts ...ChatSyncOption,
) *ChatSyncService {
	s := &ChatSyncService{
		credentials: credentials,
		tokens:      tokens,
		identity:    identity,
		api:         api,
		chats:       chats,
		relay:       relay,
		pageSize:    DefaultChatPageSize,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMetrics sets the bridge metrics collector
func (s *ChatSyncService) SetMetrics(m *telemetry.BridgeMetrics) {
	s.metrics = m
}

// SyncChats runs one pull synchronization.
// Missing credentials and auth failures are returned as errors. A failed chat
// list fetch yields a FAILED result without error. Per-chat failures are
// recorded in the result and never abort the page.
func (s *ChatSyncService) SyncChats(ctx context.Context) (*integration.SyncResult, error) {
	platform := s.credentials.Platform()
	ctx = logger.WithPlatform(ctx, platform.String())
	ctx, span := telemetry.StartServiceSpan(ctx, "chat_sync", "sync_chats",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, platform.String()))
	defer span.End()

	log := logger.L(ctx)
	started := s.now()

	cfg, err := s.credentials.Load(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	token, err := s.tokens.AcquireToken(ctx, platform, cfg.Credentials())
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Token acquisition failed", zap.Error(err))
		return nil, err
	}

	accountID := s.identity.ResolveAccountID(ctx, token.Value, cfg.AccountID)

	result := &integration.SyncResult{}
	remote, err := s.api.ListChats(ctx, token.Value, accountID, s.pageSize)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, integration.ErrAuthFailed) {
			s.tokens.Invalidate(ctx, platform)
			return nil, err
		}
		log.Error("Chat list fetch failed", zap.Error(err))
		result.Status = integration.SyncStatusFailed
		s.metrics.RecordSync(ctx, platform.String(), result.Status.String(), 0, 0, s.now().Sub(started))
		return result, nil
	}

	result.Total = len(remote)
	s.processChats(ctx, token.Value, accountID, remote, result)
	result.Finalize()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrChatsTotal, result.Total,
		telemetry.SpanAttrChatsSynced, result.Synced,
	)
	if result.Status == integration.SyncStatusSuccess {
		telemetry.SetOK(span)
	}
	s.metrics.RecordSync(ctx, platform.String(), result.Status.String(), result.Synced, result.Failed, s.now().Sub(started))

	log.Info("Chat sync completed",
		zap.String("status", result.Status.String()),
		zap.Int("total", result.Total),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// processChats stores every chat of the page, sequentially or on a bounded pool
func (s *ChatSyncService) processChats(ctx context.Context, token, accountID string, remote []integration.RemoteChat, result *integration.SyncResult) {
	var mu sync.Mutex
	record := func(outcome chatOutcome) {
		mu.Lock()
		defer mu.Unlock()
		if outcome.stored {
			result.Synced++
		} else {
			result.Failed++
		}
		if outcome.failure != nil {
			result.FailedItems = append(result.FailedItems, *outcome.failure)
		}
	}

	if s.concurrency <= 1 {
		for _, rc := range remote {
			record(s.syncChat(ctx, token, accountID, rc))
		}
		return
	}

	// workers never return an error so one chat cannot cancel the others
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, rc := range remote {
		g.Go(func() error {
			record(s.syncChat(gctx, token, accountID, rc))
			return nil
		})
	}
	_ = g.Wait()
}

type chatOutcome struct {
	stored  bool
	failure *integration.SyncFailedItem
}

// syncChat upserts one chat and relays its messages. Panics are contained to the chat.
func (s *ChatSyncService) syncChat(ctx context.Context, token, accountID string, rc integration.RemoteChat) (outcome chatOutcome) {
	log := logger.L(ctx).With(zap.String("chat_external_id", rc.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Chat sync panicked", zap.Any("panic", r))
			outcome = chatOutcome{
				stored:  outcome.stored,
				failure: &integration.SyncFailedItem{ExternalID: rc.ID, Stage: StageChat, Error: fmt.Sprint(r)},
			}
		}
	}()

	chat, err := integration.NewChatFromRemote(s.credentials.Platform(), rc, accountID, s.now())
	if err != nil {
		log.Warn("Skipping invalid remote chat", zap.Error(err))
		return chatOutcome{failure: &integration.SyncFailedItem{ExternalID: rc.ID, Stage: StageChat, Error: err.Error()}}
	}

	stored, err := s.chats.Upsert(ctx, chat)
	if err != nil {
		log.Error("Chat upsert failed", zap.Error(err))
		return chatOutcome{failure: &integration.SyncFailedItem{ExternalID: rc.ID, Stage: StageChat, Error: err.Error()}}
	}

	if err := s.relay.RelayMessages(ctx, token, accountID, stored); err != nil {
		log.Error("Message relay failed", zap.Error(err))
		return chatOutcome{
			stored:  true,
			failure: &integration.SyncFailedItem{ExternalID: rc.ID, Stage: StageMessages, Error: err.Error()},
		}
	}
	return chatOutcome{stored: true}
}
