package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatbridge/backend/internal/domain/shared"
)

// Chat is the local mirror of a remote conversation.
// (Platform, ExternalID) identifies a chat; the store enforces it with a unique index.
type Chat struct {
	ID          uuid.UUID
	Platform    PlatformCode
	ExternalID  string
	ClientName  string
	LastMessage string
	UnreadCount int
	UpdatedAt   time.Time
	CreatedAt   time.Time
}

// NewChatFromRemote builds the mirror row for a chat returned by a pull sync
func NewChatFromRemote(platform PlatformCode, remote RemoteChat, accountID string, now time.Time) (*Chat, error) {
	chat := &Chat{
		ID:          uuid.New(),
		Platform:    platform,
		ExternalID:  remote.ID,
		ClientName:  remote.ClientName(accountID),
		LastMessage: remote.LastMessageText(),
		UpdatedAt:   remote.UpdatedTime(now),
		CreatedAt:   now,
	}
	if err := chat.Validate(); err != nil {
		return nil, err
	}
	return chat, nil
}

// NewChatFromWebhook builds the mirror row for a chat first seen through a
// webhook, where only the author id of the message is known
func NewChatFromWebhook(platform PlatformCode, msg RemoteMessage, now time.Time) (*Chat, error) {
	chat := &Chat{
		ID:          uuid.New(),
		Platform:    platform,
		ExternalID:  msg.ChatID,
		ClientName:  fmt.Sprintf(WebhookClientNameFormat, msg.AuthorID),
		LastMessage: msg.DisplayText(),
		UpdatedAt:   msg.CreatedTime(now),
		CreatedAt:   now,
	}
	if err := chat.Validate(); err != nil {
		return nil, err
	}
	return chat, nil
}

// Validate checks the identifying fields
func (c *Chat) Validate() error {
	if !c.Platform.IsValid() {
		return shared.NewDomainError("INVALID_PLATFORM", fmt.Sprintf("invalid platform code %q", c.Platform))
	}
	if c.ExternalID == "" {
		return shared.NewDomainError("INVALID_CHAT", "chat external id is required")
	}
	return nil
}

// ChatRepository persists chats.
// Find methods return ErrChatNotFound when no row matches.
type ChatRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Chat, error)
	FindByExternalID(ctx context.Context, platform PlatformCode, externalID string) (*Chat, error)
	// Upsert inserts the chat or overwrites client name, last message and
	// updated_at of the existing row with the same (platform, external id).
	// The stored row is returned.
	Upsert(ctx context.Context, chat *Chat) (*Chat, error)
	// FindOrCreate returns the existing chat with the same (platform, external id)
	// or stores chat. created reports which one happened.
	FindOrCreate(ctx context.Context, chat *Chat) (stored *Chat, created bool, err error)
	// TouchActivity adds unreadDelta to the unread counter and sets last message
	// and updated_at unless the chat already shows a newer message
	TouchActivity(ctx context.Context, id uuid.UUID, lastMessage string, at time.Time, unreadDelta int) error
}
