package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/backend/internal/domain/integration"
)

type syncFixture struct {
	repo     *MockIntegrationConfigRepository
	api      *MockMarketplaceAPI
	chats    *MockChatRepository
	messages *MockMessageRepository
	cache    *MockTokenCache
	service  *ChatSyncService
}

func newSyncFixture(opts ...ChatSyncOption) *syncFixture {
	f := &syncFixture{
		repo:     new(MockIntegrationConfigRepository),
		api:      new(MockMarketplaceAPI),
		chats:    new(MockChatRepository),
		messages: new(MockMessageRepository),
		cache:    new(MockTokenCache),
	}
	f.repo.On("FindByService", mock.Anything, testPlatform).Return(configuredIntegration(testAccountID), nil).Maybe()
	f.api.On("GetSelf", mock.Anything, testToken).Return(&integration.RemoteAccount{ID: testAccountID}, nil).Maybe()

	broker := newCachedBroker(f.cache)
	creds := NewCredentialStore(f.repo, testPlatform)
	relay := NewMessageRelay(f.api, f.messages, broker, testPlatform, 0)
	relay.now = fixedNow

	f.service = NewChatSyncService(creds, broker, NewIdentityResolver(f.api, creds), f.api, f.chats, relay, opts...)
	f.service.now = fixedNow
	return f
}

func chatWithID(externalID string) *integration.Chat {
	return &integration.Chat{ID: uuid.New(), Platform: testPlatform, ExternalID: externalID}
}

func forChat(externalID string) any {
	return mock.MatchedBy(func(c *integration.Chat) bool { return c.ExternalID == externalID })
}

func TestChatSyncService_SyncChats(t *testing.T) {
	ctx := context.Background()

	t.Run("mirrors chats and classifies message direction", func(t *testing.T) {
		f := newSyncFixture()
		remote := []integration.RemoteChat{{
			ID:           "c1",
			Users:        []integration.RemoteUser{{ID: testAccountID, Name: "Shop"}, {ID: "5", Name: "Ivan"}},
			ContextTitle: "Bike",
			LastMessage:  &integration.RemoteMessage{ID: "m2", Type: "text", Text: "Hello"},
			Updated:      testNow.Unix(),
		}}
		stored := chatWithID("c1")
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).Return(remote, nil)
		f.chats.On("Upsert", mock.Anything, mock.MatchedBy(func(c *integration.Chat) bool {
			return c.ExternalID == "c1" && c.ClientName == "Ivan (Bike)" && c.LastMessage == "Hello"
		})).Return(stored, nil)
		f.api.On("ListMessages", mock.Anything, testToken, testAccountID, "c1", DefaultMessageWindow).Return([]integration.RemoteMessage{
			{ID: "m1", ChatID: "c1", AuthorID: "5", Type: "text", Text: "Hi", Created: testNow.Add(-time.Minute).Unix()},
			{ID: "m2", ChatID: "c1", AuthorID: testAccountID, Type: "text", Text: "Hello", Created: testNow.Unix()},
		}, nil)
		f.messages.On("UpsertBatch", mock.Anything, mock.MatchedBy(func(batch []*integration.Message) bool {
			return len(batch) == 2 &&
				batch[0].ChatID == stored.ID &&
				batch[0].Sender == integration.SenderClient && !batch[0].IsRead &&
				batch[1].Sender == integration.SenderShop && batch[1].IsRead
		})).Return(nil).Once()

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusSuccess, result.Status)
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 0, result.Failed)
		f.messages.AssertExpectations(t)
	})

	t.Run("one failing chat does not stop the others", func(t *testing.T) {
		f := newSyncFixture()
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).
			Return([]integration.RemoteChat{{ID: "c1"}, {ID: "c2"}}, nil)
		f.chats.On("Upsert", mock.Anything, forChat("c1")).Return(nil, errors.New("constraint violated"))
		f.chats.On("Upsert", mock.Anything, forChat("c2")).Return(chatWithID("c2"), nil)
		f.api.On("ListMessages", mock.Anything, testToken, testAccountID, "c2", DefaultMessageWindow).
			Return([]integration.RemoteMessage{}, nil)

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusPartial, result.Status)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.FailedItems, 1)
		assert.Equal(t, "c1", result.FailedItems[0].ExternalID)
		assert.Equal(t, StageChat, result.FailedItems[0].Stage)
	})

	t.Run("message fetch failure skips only that chat's messages", func(t *testing.T) {
		f := newSyncFixture()
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).
			Return([]integration.RemoteChat{{ID: "c1"}}, nil)
		f.chats.On("Upsert", mock.Anything, forChat("c1")).Return(chatWithID("c1"), nil)
		f.api.On("ListMessages", mock.Anything, testToken, testAccountID, "c1", DefaultMessageWindow).
			Return(nil, integration.ErrMessageFetch)

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusSuccess, result.Status)
		assert.Equal(t, 1, result.Synced)
		f.messages.AssertNotCalled(t, "UpsertBatch", mock.Anything, mock.Anything)
	})

	t.Run("message store failure keeps the chat counted as synced", func(t *testing.T) {
		f := newSyncFixture()
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).
			Return([]integration.RemoteChat{{ID: "c1"}}, nil)
		f.chats.On("Upsert", mock.Anything, forChat("c1")).Return(chatWithID("c1"), nil)
		f.api.On("ListMessages", mock.Anything, testToken, testAccountID, "c1", DefaultMessageWindow).
			Return([]integration.RemoteMessage{{ID: "m1", AuthorID: "5", Type: "text", Text: "Hi"}}, nil)
		f.messages.On("UpsertBatch", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusPartial, result.Status)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 0, result.Failed)
		require.Len(t, result.FailedItems, 1)
		assert.Equal(t, StageMessages, result.FailedItems[0].Stage)
	})

	t.Run("chat list failure yields FAILED without error", func(t *testing.T) {
		f := newSyncFixture()
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).
			Return(nil, fmt.Errorf("%w: HTTP 500", integration.ErrChatFetch))

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusFailed, result.Status)
		assert.Equal(t, 0, result.Synced)
		f.chats.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("rejected token is invalidated and returned", func(t *testing.T) {
		f := newSyncFixture()
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).
			Return(nil, fmt.Errorf("%w: %w", integration.ErrChatFetch, integration.ErrAuthFailed))
		f.cache.On("Invalidate", mock.Anything, testPlatform).Return(nil).Once()

		result, err := f.service.SyncChats(ctx)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, integration.ErrAuthFailed)
		f.cache.AssertExpectations(t)
	})

	t.Run("unconfigured integration fails before any remote call", func(t *testing.T) {
		f := newSyncFixture()
		f.repo.ExpectedCalls = nil
		f.repo.On("FindByService", mock.Anything, testPlatform).Return(nil, integration.ErrIntegrationNotConfigured)

		_, err := f.service.SyncChats(ctx)
		assert.ErrorIs(t, err, integration.ErrIntegrationNotConfigured)
		f.api.AssertNotCalled(t, "ListChats", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty chat list is a success", func(t *testing.T) {
		f := newSyncFixture(WithChatPageSize(5))
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, 5).Return([]integration.RemoteChat{}, nil)

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusSuccess, result.Status)
		assert.Equal(t, 0, result.Total)
	})

	t.Run("bounded pool syncs every chat", func(t *testing.T) {
		f := newSyncFixture(WithRelayConcurrency(3))
		var remote []integration.RemoteChat
		for i := 0; i < 7; i++ {
			id := fmt.Sprintf("c%d", i)
			remote = append(remote, integration.RemoteChat{ID: id})
			f.chats.On("Upsert", mock.Anything, forChat(id)).Return(chatWithID(id), nil)
			f.api.On("ListMessages", mock.Anything, testToken, testAccountID, id, DefaultMessageWindow).
				Return([]integration.RemoteMessage{}, nil)
		}
		remote = append(remote, integration.RemoteChat{ID: "broken"})
		f.chats.On("Upsert", mock.Anything, forChat("broken")).Return(nil, errors.New("boom"))
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).Return(remote, nil)

		result, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8, result.Total)
		assert.Equal(t, 7, result.Synced)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, integration.SyncStatusPartial, result.Status)
	})

	t.Run("resolved account id drives the remote calls", func(t *testing.T) {
		f := newSyncFixture()
		f.repo.ExpectedCalls = nil
		f.repo.On("FindByService", mock.Anything, testPlatform).Return(configuredIntegration(""), nil)
		f.repo.On("UpdateAccountID", mock.Anything, testPlatform, testAccountID).Return(nil).Once()
		f.api.On("ListChats", mock.Anything, testToken, testAccountID, DefaultChatPageSize).Return([]integration.RemoteChat{}, nil).Once()

		_, err := f.service.SyncChats(ctx)
		require.NoError(t, err)
		f.repo.AssertExpectations(t)
		f.api.AssertExpectations(t)
	})
}
