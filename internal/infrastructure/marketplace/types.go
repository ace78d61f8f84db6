package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// flexibleID decodes identifiers the platform sends either as JSON numbers
// or as strings
type flexibleID string

// UnmarshalJSON implements json.Unmarshaler
func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", data)
	}
	if i, err := n.Int64(); err == nil {
		*id = flexibleID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = flexibleID(n.String())
	return nil
}

// ---------------------------------------------------------------------------
// GET /accounts/self
// ---------------------------------------------------------------------------

type selfResponse struct {
	ID   flexibleID `json:"id"`
	Name string     `json:"name,omitempty"`
}

// ---------------------------------------------------------------------------
// GET /accounts/{id}/chats
// ---------------------------------------------------------------------------

type chatsResponse struct {
	Chats []chatPayload `json:"chats"`
}

type chatPayload struct {
	ID          flexibleID      `json:"id"`
	Users       []userPayload   `json:"users"`
	Context     *chatContext    `json:"context,omitempty"`
	LastMessage *messagePayload `json:"last_message,omitempty"`
	Updated     int64           `json:"updated"`
	Created     int64           `json:"created"`
}

type userPayload struct {
	ID   flexibleID `json:"id"`
	Name string     `json:"name"`
}

type chatContext struct {
	Type  string            `json:"type"`
	Value *chatContextValue `json:"value,omitempty"`
}

type chatContextValue struct {
	ID    flexibleID `json:"id"`
	Title string     `json:"title"`
}

func (p chatPayload) toDomain() integration.RemoteChat {
	chat := integration.RemoteChat{
		ID:      string(p.ID),
		Updated: p.Updated,
	}
	if chat.Updated == 0 {
		chat.Updated = p.Created
	}
	for _, u := range p.Users {
		chat.Users = append(chat.Users, integration.RemoteUser{ID: string(u.ID), Name: u.Name})
	}
	if p.Context != nil && p.Context.Value != nil {
		chat.ContextTitle = p.Context.Value.Title
	}
	if p.LastMessage != nil {
		msg := p.LastMessage.toDomain(chat.ID)
		// chat previews may omit the content type for plain text
		if msg.Type == "" && msg.Text != "" {
			msg.Type = integration.MessageTypeText
		}
		chat.LastMessage = &msg
	}
	return chat
}

// ---------------------------------------------------------------------------
// GET /accounts/{id}/chats/{chatId}/messages
// ---------------------------------------------------------------------------

type messagesResponse struct {
	Messages []messagePayload `json:"messages"`
}

type messagePayload struct {
	ID       flexibleID     `json:"id"`
	AuthorID flexibleID     `json:"author_id"`
	Content  messageContent `json:"content"`
	Created  int64          `json:"created"`
}

type messageContent struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

func (p messagePayload) toDomain(chatID string) integration.RemoteMessage {
	return integration.RemoteMessage{
		ID:       string(p.ID),
		ChatID:   chatID,
		AuthorID: string(p.AuthorID),
		Type:     p.Content.Type,
		Text:     p.Content.Text,
		Created:  p.Created,
	}
}

// ---------------------------------------------------------------------------
// POST /accounts/{id}/chats/{chatId}/messages
// ---------------------------------------------------------------------------

type sendMessageRequest struct {
	Message sendMessageText `json:"message"`
	Type    string          `json:"type"`
}

type sendMessageText struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	ID      flexibleID `json:"id"`
	Created int64      `json:"created"`
}

// ---------------------------------------------------------------------------
// POST /webhook
// ---------------------------------------------------------------------------

type registerWebhookRequest struct {
	URL string `json:"url"`
}

// ---------------------------------------------------------------------------
// Push notifications
// ---------------------------------------------------------------------------

// WebhookPayload is the body the platform posts to the bridge
type WebhookPayload struct {
	Type    string              `json:"type"`
	Payload WebhookPayloadValue `json:"payload"`
}

// WebhookPayloadValue wraps the event value
type WebhookPayloadValue struct {
	Value WebhookMessage `json:"value"`
}

// WebhookMessage is the message carried by a "message" event
type WebhookMessage struct {
	ChatID   flexibleID     `json:"chatId"`
	ID       flexibleID     `json:"id"`
	Content  webhookContent `json:"content"`
	AuthorID flexibleID     `json:"authorId"`
	Created  int64          `json:"created"`
}

type webhookContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToDomain converts the payload into a domain event
func (p WebhookPayload) ToDomain() integration.WebhookEvent {
	v := p.Payload.Value
	return integration.WebhookEvent{
		Type: p.Type,
		Message: integration.RemoteMessage{
			ID:       string(v.ID),
			ChatID:   string(v.ChatID),
			AuthorID: string(v.AuthorID),
			Type:     v.Content.Type,
			Text:     v.Content.Text,
			Created:  v.Created,
		},
	}
}

// DecodeWebhook parses a push notification body
func DecodeWebhook(body []byte) (integration.WebhookEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return integration.WebhookEvent{}, fmt.Errorf("%w: %v", integration.ErrInvalidWebhookEvent, err)
	}
	return payload.ToDomain(), nil
}
