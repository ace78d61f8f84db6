package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chatbridge/backend/internal/domain/shared"
)

// Sender identifies which side of the conversation wrote a message
type Sender string

const (
	// SenderShop marks messages written by the shop account
	SenderShop Sender = "shop"
	// SenderClient marks messages written by the counterparty
	SenderClient Sender = "client"
)

// IsValid returns true if the sender is known
func (s Sender) IsValid() bool {
	return s == SenderShop || s == SenderClient
}

// String returns the string representation of Sender
func (s Sender) String() string {
	return string(s)
}

// ClassifySender returns SenderShop iff the author is the shop account
func ClassifySender(authorID, accountID string) Sender {
	if accountID != "" && authorID == accountID {
		return SenderShop
	}
	return SenderClient
}

// Message is one message of a chat.
// ExternalID is empty for locally composed messages the platform never echoed back.
type Message struct {
	ID         uuid.UUID
	ChatID     uuid.UUID
	ExternalID string
	Text       string
	Sender     Sender
	IsRead     bool
	CreatedAt  time.Time
}

// NewMessageFromRemote maps a remote message into chat, classifying its
// direction against the shop account id. Shop messages are born read.
func NewMessageFromRemote(chatID uuid.UUID, remote RemoteMessage, accountID string, now time.Time) (*Message, error) {
	sender := ClassifySender(remote.AuthorID, accountID)
	msg := &Message{
		ID:         uuid.New(),
		ChatID:     chatID,
		ExternalID: remote.ID,
		Text:       remote.DisplayText(),
		Sender:     sender,
		IsRead:     sender == SenderShop,
		CreatedAt:  remote.CreatedTime(now),
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// NewOutboundMessage records a message the shop just sent.
// externalID is the platform id from the send response and may be empty.
func NewOutboundMessage(chatID uuid.UUID, externalID, text string, now time.Time) *Message {
	return &Message{
		ID:         uuid.New(),
		ChatID:     chatID,
		ExternalID: externalID,
		Text:       text,
		Sender:     SenderShop,
		IsRead:     true,
		CreatedAt:  now,
	}
}

// HasExternalID returns true if the message is known to the platform
func (m *Message) HasExternalID() bool {
	return m.ExternalID != ""
}

// Validate checks the required fields
func (m *Message) Validate() error {
	if m.ChatID == uuid.Nil {
		return shared.NewDomainError("INVALID_MESSAGE", "message chat id is required")
	}
	if !m.Sender.IsValid() {
		return shared.NewDomainError("INVALID_MESSAGE", "message sender must be shop or client")
	}
	return nil
}

// MessageRepository persists messages.
// (ChatID, ExternalID) identifies a message that has an external id.
type MessageRepository interface {
	// UpsertBatch stores messages, overwriting text and sender of rows that already exist
	UpsertBatch(ctx context.Context, messages []*Message) error
	// InsertIfAbsent stores msg unless a row with the same (chat, external id)
	// exists. inserted is false for duplicates.
	InsertIfAbsent(ctx context.Context, msg *Message) (inserted bool, err error)
	// ExistingExternalIDs returns the subset of externalIDs the chat already holds
	ExistingExternalIDs(ctx context.Context, chatID uuid.UUID, externalIDs []string) (map[string]struct{}, error)
	// Create stores a message unconditionally
	Create(ctx context.Context, msg *Message) error
}
