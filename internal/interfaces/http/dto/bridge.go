package dto

import (
	"encoding/json"
	"time"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// Bridge actions accepted by the dispatch endpoint
const (
	ActionSyncChats       = "sync_chats"
	ActionSendMessage     = "send_message"
	ActionRegisterWebhook = "register_webhook"
)

// ActionRequest is the body of POST /bridge/actions.
// A body that is not valid JSON decodes as the zero value.
type ActionRequest struct {
	Action string `json:"action"`
	ChatID string `json:"chatId"`
	Text   string `json:"text"`
}

// SendMessageParams are the fields send_message requires
type SendMessageParams struct {
	ChatID string `json:"chatId" validate:"required,uuid"`
	Text   string `json:"text" validate:"required,max=4000"`
}

// SyncChatsResponse answers sync_chats
type SyncChatsResponse struct {
	Success     bool                         `json:"success"`
	Status      string                       `json:"status"`
	Total       int                          `json:"total"`
	Synced      int                          `json:"synced"`
	Failed      int                          `json:"failed"`
	FailedItems []integration.SyncFailedItem `json:"failed_items,omitempty"`
}

// NewSyncChatsResponse converts a sync result
func NewSyncChatsResponse(r *integration.SyncResult) SyncChatsResponse {
	return SyncChatsResponse{
		Success:     r.Status != integration.SyncStatusFailed,
		Status:      r.Status.String(),
		Total:       r.Total,
		Synced:      r.Synced,
		Failed:      r.Failed,
		FailedItems: r.FailedItems,
	}
}

// MessageResponse is a stored message as returned to the dashboard
type MessageResponse struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	ExternalID string    `json:"external_id,omitempty"`
	Text       string    `json:"text"`
	Sender     string    `json:"sender"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessageResponse converts a domain message
func NewMessageResponse(m *integration.Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID.String(),
		ChatID:     m.ChatID.String(),
		ExternalID: m.ExternalID,
		Text:       m.Text,
		Sender:     m.Sender.String(),
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

// SendMessageResponse answers send_message
type SendMessageResponse struct {
	Success bool            `json:"success"`
	Message MessageResponse `json:"message"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// RegisterWebhookResponse answers register_webhook
type RegisterWebhookResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// WebhookAck is returned to the platform for every webhook delivery
type WebhookAck struct {
	OK      bool   `json:"ok"`
	Outcome string `json:"outcome,omitempty"`
}
