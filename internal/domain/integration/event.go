package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Message directions as seen from the shop
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message sources
const (
	SourceWebhook = "webhook"
	SourcePull    = "pull"
	SourceAPI     = "api"
)

// EventTypeMessageObserved is the routing key of MessageObserved events
const EventTypeMessageObserved = "chat.message.observed.v1"

// MessageObserved is emitted whenever the bridge stores a message it had not
// seen before, so other services can react to chat traffic
type MessageObserved struct {
	EventID           uuid.UUID    `json:"event_id"`
	Platform          PlatformCode `json:"platform"`
	ChatID            uuid.UUID    `json:"chat_id"`
	ProviderChatID    string       `json:"provider_chat_id"`
	ProviderMessageID string       `json:"provider_message_id,omitempty"`
	Direction         string       `json:"direction"`
	Source            string       `json:"source"`
	Text              string       `json:"text"`
	AtProvider        time.Time    `json:"at_provider"`
	ObservedAt        time.Time    `json:"observed_at"`
}

// NewMessageObserved builds the event for msg stored in chat
func NewMessageObserved(chat *Chat, msg *Message, source string, now time.Time) MessageObserved {
	direction := DirectionInbound
	if msg.Sender == SenderShop {
		direction = DirectionOutbound
	}
	return MessageObserved{
		EventID:           uuid.New(),
		Platform:          chat.Platform,
		ChatID:            chat.ID,
		ProviderChatID:    chat.ExternalID,
		ProviderMessageID: msg.ExternalID,
		Direction:         direction,
		Source:            source,
		Text:              msg.Text,
		AtProvider:        msg.CreatedAt,
		ObservedAt:        now,
	}
}

// MessageEventPublisher delivers MessageObserved events to other services
type MessageEventPublisher interface {
	PublishMessageObserved(ctx context.Context, event MessageObserved) error
	Close() error
}

// EventDropper is implemented by publishers that may discard every event.
// Callers use it to skip work done only to build events.
type EventDropper interface {
	DropsEvents() bool
}
