package integration

import (
	"encoding/json"
	"fmt"
	"time"
)

// Fallback values used when a remote payload lacks a field
const (
	// MessageTypeText is the only content type stored verbatim
	MessageTypeText = "text"
	// AttachmentPlaceholder replaces the text of any non-text message
	AttachmentPlaceholder = "[attachment]"
	// UnknownClientName is used when a chat has no users at all
	UnknownClientName = "Unknown client"
	// WebhookClientNameFormat names a chat first seen through a webhook
	WebhookClientNameFormat = "Client %s"
	// EventTypeMessage is the webhook event type carrying a new message
	EventTypeMessage = "message"
)

// RemoteAccount is the account identity returned by the platform
type RemoteAccount struct {
	ID string
}

// RemoteUser is a participant of a remote chat
type RemoteUser struct {
	ID   string
	Name string
}

// RemoteMessage is a message as reported by the platform, either from a
// message list or from a webhook notification
type RemoteMessage struct {
	ID       string
	ChatID   string
	AuthorID string
	Type     string
	Text     string
	Created  int64 // unix seconds
}

// IsText returns true if the message carries plain text content
func (m RemoteMessage) IsText() bool {
	return m.Type == MessageTypeText
}

// DisplayText returns the text to store locally
func (m RemoteMessage) DisplayText() string {
	if !m.IsText() {
		return AttachmentPlaceholder
	}
	return m.Text
}

// CreatedTime converts the unix timestamp, falling back to fallback when absent
func (m RemoteMessage) CreatedTime(fallback time.Time) time.Time {
	if m.Created <= 0 {
		return fallback
	}
	return time.Unix(m.Created, 0).UTC()
}

// RemoteChat is a chat as listed by the platform
type RemoteChat struct {
	ID           string
	Users        []RemoteUser
	ContextTitle string // listing the chat is about, may be empty
	LastMessage  *RemoteMessage
	Updated      int64 // unix seconds
}

// Counterparty returns the first user that is not the shop account, or the
// first user when every participant matches. Returns nil for chats without users.
func (c RemoteChat) Counterparty(accountID string) *RemoteUser {
	if len(c.Users) == 0 {
		return nil
	}
	for i := range c.Users {
		if c.Users[i].ID != accountID {
			return &c.Users[i]
		}
	}
	return &c.Users[0]
}

// ClientName is the counterparty name, suffixed with the listing title when present
func (c RemoteChat) ClientName(accountID string) string {
	name := UnknownClientName
	if user := c.Counterparty(accountID); user != nil && user.Name != "" {
		name = user.Name
	}
	if c.ContextTitle != "" {
		name = fmt.Sprintf("%s (%s)", name, c.ContextTitle)
	}
	return name
}

// LastMessageText returns the preview text of the last message
func (c RemoteChat) LastMessageText() string {
	if c.LastMessage == nil {
		return ""
	}
	return c.LastMessage.DisplayText()
}

// UpdatedTime converts the unix timestamp, falling back to fallback when absent
func (c RemoteChat) UpdatedTime(fallback time.Time) time.Time {
	if c.Updated <= 0 {
		return fallback
	}
	return time.Unix(c.Updated, 0).UTC()
}

// SentMessage is the platform's answer to an outbound message
type SentMessage struct {
	ID      string
	Created int64
	Raw     json.RawMessage // undecoded response body
}

// WebhookEvent is a decoded push notification
type WebhookEvent struct {
	Type    string
	Message RemoteMessage
}

// IsTextMessage returns true for the only event kind the bridge stores
func (e WebhookEvent) IsTextMessage() bool {
	return e.Type == EventTypeMessage && e.Message.IsText()
}

// Validate checks the identifiers needed to store the message
func (e WebhookEvent) Validate() error {
	if e.Message.ChatID == "" {
		return fmt.Errorf("%w: chat id is required", ErrInvalidWebhookEvent)
	}
	if e.Message.ID == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidWebhookEvent)
	}
	return nil
}
