package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// IntegrationConfigModel is the persistence model for stored platform credentials
type IntegrationConfigModel struct {
	Service      string    `gorm:"type:varchar(50);primaryKey"`
	ClientID     string    `gorm:"type:varchar(255);not null"`
	ClientSecret string    `gorm:"type:varchar(255);not null"`
	AccountID    string    `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationConfigModel) TableName() string {
	return "integration_configs"
}

// ToDomain converts the model to a domain entity
func (m *IntegrationConfigModel) ToDomain() *integration.IntegrationConfig {
	return &integration.IntegrationConfig{
		Service:      integration.PlatformCode(m.Service),
		ClientID:     m.ClientID,
		ClientSecret: m.ClientSecret,
		AccountID:    m.AccountID,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// IntegrationConfigModelFromDomain creates a model from a domain entity
func IntegrationConfigModelFromDomain(c *integration.IntegrationConfig) *IntegrationConfigModel {
	return &IntegrationConfigModel{
		Service:      c.Service.String(),
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		AccountID:    c.AccountID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// ChatModel is the persistence model for a mirrored chat.
// UpdatedAt carries the remote activity time and is never set by GORM.
type ChatModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Platform    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_chats_platform_external,priority:1"`
	ExternalID  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_chats_platform_external,priority:2"`
	ClientName  string    `gorm:"type:varchar(255);not null"`
	LastMessage string    `gorm:"type:text;not null"`
	UnreadCount int       `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false;index"`
	CreatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChatModel) TableName() string {
	return "chats"
}

// ToDomain converts the model to a domain entity
func (m *ChatModel) ToDomain() *integration.Chat {
	return &integration.Chat{
		ID:          m.ID,
		Platform:    integration.PlatformCode(m.Platform),
		ExternalID:  m.ExternalID,
		ClientName:  m.ClientName,
		LastMessage: m.LastMessage,
		UnreadCount: m.UnreadCount,
		UpdatedAt:   m.UpdatedAt,
		CreatedAt:   m.CreatedAt,
	}
}

// ChatModelFromDomain creates a model from a domain entity
func ChatModelFromDomain(c *integration.Chat) *ChatModel {
	return &ChatModel{
		ID:          c.ID,
		Platform:    c.Platform.String(),
		ExternalID:  c.ExternalID,
		ClientName:  c.ClientName,
		LastMessage: c.LastMessage,
		UnreadCount: c.UnreadCount,
		UpdatedAt:   c.UpdatedAt,
		CreatedAt:   c.CreatedAt,
	}
}

// MessageModel is the persistence model for a chat message.
// ExternalID is NULL for messages the platform never echoed back, and NULLs
// never collide in the unique index.
type MessageModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChatID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_chat_external,priority:1"`
	ExternalID *string   `gorm:"type:varchar(100);uniqueIndex:idx_messages_chat_external,priority:2"`
	Text       string    `gorm:"type:text;not null"`
	Sender     string    `gorm:"type:varchar(10);not null"`
	IsRead     bool      `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts the model to a domain entity
func (m *MessageModel) ToDomain() *integration.Message {
	msg := &integration.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Text:      m.Text,
		Sender:    integration.Sender(m.Sender),
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
	if m.ExternalID != nil {
		msg.ExternalID = *m.ExternalID
	}
	return msg
}

// MessageModelFromDomain creates a model from a domain entity
func MessageModelFromDomain(msg *integration.Message) *MessageModel {
	m := &MessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Text:      msg.Text,
		Sender:    msg.Sender.String(),
		IsRead:    msg.IsRead,
		CreatedAt: msg.CreatedAt,
	}
	if msg.HasExternalID() {
		externalID := msg.ExternalID
		m.ExternalID = &externalID
	}
	return m
}

// AllModels lists the models of the bridge schema, in dependency order
func AllModels() []any {
	return []any{
		&IntegrationConfigModel{},
		&ChatModel{},
		&MessageModel{},
	}
}
