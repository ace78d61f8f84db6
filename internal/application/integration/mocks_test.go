package integration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// =============================================================================
// Mock Integration Config Repository
// =============================================================================

type MockIntegrationConfigRepository struct {
	mock.Mock
}

func (m *MockIntegrationConfigRepository) FindByService(ctx context.Context, service integration.PlatformCode) (*integration.IntegrationConfig, error) {
	args := m.Called(ctx, service)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.IntegrationConfig), args.Error(1)
}

func (m *MockIntegrationConfigRepository) UpdateAccountID(ctx context.Context, service integration.PlatformCode, accountID string) error {
	args := m.Called(ctx, service, accountID)
	return args.Error(0)
}

func (m *MockIntegrationConfigRepository) Save(ctx context.Context, cfg *integration.IntegrationConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// =============================================================================
// Mock Chat Repository
// =============================================================================

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Chat, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Chat), args.Error(1)
}

func (m *MockChatRepository) FindByExternalID(ctx context.Context, platform integration.PlatformCode, externalID string) (*integration.Chat, error) {
	args := m.Called(ctx, platform, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Chat), args.Error(1)
}

func (m *MockChatRepository) Upsert(ctx context.Context, chat *integration.Chat) (*integration.Chat, error) {
	args := m.Called(ctx, chat)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Chat), args.Error(1)
}

func (m *MockChatRepository) FindOrCreate(ctx context.Context, chat *integration.Chat) (*integration.Chat, bool, error) {
	args := m.Called(ctx, chat)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*integration.Chat), args.Bool(1), args.Error(2)
}

func (m *MockChatRepository) TouchActivity(ctx context.Context, id uuid.UUID, lastMessage string, at time.Time, unreadDelta int) error {
	args := m.Called(ctx, id, lastMessage, at, unreadDelta)
	return args.Error(0)
}

// =============================================================================
// Mock Message Repository
// =============================================================================

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) UpsertBatch(ctx context.Context, messages []*integration.Message) error {
	args := m.Called(ctx, messages)
	return args.Error(0)
}

func (m *MockMessageRepository) InsertIfAbsent(ctx context.Context, msg *integration.Message) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) ExistingExternalIDs(ctx context.Context, chatID uuid.UUID, externalIDs []string) (map[string]struct{}, error) {
	args := m.Called(ctx, chatID, externalIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *integration.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// =============================================================================
// Mock Marketplace API
// =============================================================================

type MockMarketplaceAPI struct {
	mock.Mock
}

func (m *MockMarketplaceAPI) GetSelf(ctx context.Context, token string) (*integration.RemoteAccount, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteAccount), args.Error(1)
}

func (m *MockMarketplaceAPI) ListChats(ctx context.Context, token, accountID string, limit int) ([]integration.RemoteChat, error) {
	args := m.Called(ctx, token, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RemoteChat), args.Error(1)
}

func (m *MockMarketplaceAPI) ListMessages(ctx context.Context, token, accountID, chatID string, limit int) ([]integration.RemoteMessage, error) {
	args := m.Called(ctx, token, accountID, chatID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RemoteMessage), args.Error(1)
}

func (m *MockMarketplaceAPI) SendTextMessage(ctx context.Context, token, accountID, chatID, text string) (*integration.SentMessage, error) {
	args := m.Called(ctx, token, accountID, chatID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SentMessage), args.Error(1)
}

func (m *MockMarketplaceAPI) RegisterWebhook(ctx context.Context, token, url string) (json.RawMessage, error) {
	args := m.Called(ctx, token, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// =============================================================================
// Mock Token Source and Cache
// =============================================================================

type MockTokenSource struct {
	mock.Mock
}

func (m *MockTokenSource) Token(ctx context.Context, creds integration.Credentials) (*integration.AccessToken, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.AccessToken), args.Error(1)
}

type MockTokenCache struct {
	mock.Mock
}

func (m *MockTokenCache) Get(ctx context.Context, platform integration.PlatformCode) (*integration.AccessToken, error) {
	args := m.Called(ctx, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.AccessToken), args.Error(1)
}

func (m *MockTokenCache) Set(ctx context.Context, platform integration.PlatformCode, token *integration.AccessToken) error {
	args := m.Called(ctx, platform, token)
	return args.Error(0)
}

func (m *MockTokenCache) Invalidate(ctx context.Context, platform integration.PlatformCode) error {
	args := m.Called(ctx, platform)
	return args.Error(0)
}

// =============================================================================
// Mock Idempotency Store
// =============================================================================

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// =============================================================================
// Mock Event Publisher
// =============================================================================

type MockMessageEventPublisher struct {
	mock.Mock
}

func (m *MockMessageEventPublisher) PublishMessageObserved(ctx context.Context, event integration.MessageObserved) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockMessageEventPublisher) Close() error {
	return m.Called().Error(0)
}

// =============================================================================
// Fixtures
// =============================================================================

const (
	testPlatform  = integration.PlatformCodeAvito
	testAccountID = "1001"
	testToken     = "tok-1"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func configuredIntegration(accountID string) *integration.IntegrationConfig {
	return &integration.IntegrationConfig{
		Service:      testPlatform,
		ClientID:     "client",
		ClientSecret: "secret",
		AccountID:    accountID,
	}
}

func freshToken() *integration.AccessToken {
	return &integration.AccessToken{Value: testToken, ExpiresAt: testNow.Add(time.Hour)}
}

// newCachedBroker returns a broker whose cache always holds a usable token
func newCachedBroker(cache *MockTokenCache) *TokenBroker {
	cache.On("Get", mock.Anything, testPlatform).Return(freshToken(), nil).Maybe()
	broker := NewTokenBroker(&MockTokenSource{}, cache, time.Minute)
	broker.now = fixedNow
	return broker
}
