package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/persistence/models"
)

// GormChatRepository implements ChatRepository using GORM
type GormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GormChatRepository
func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// FindByID finds a chat by its local id
func (r *GormChatRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Chat, error) {
	var model models.ChatModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrChatNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds a chat by its platform id
func (r *GormChatRepository) FindByExternalID(ctx context.Context, platform integration.PlatformCode, externalID string) (*integration.Chat, error) {
	var model models.ChatModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND external_id = ?", platform.String(), externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrChatNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts the chat or overwrites the mutable fields of the row with
// the same (platform, external_id). Last write wins.
func (r *GormChatRepository) Upsert(ctx context.Context, chat *integration.Chat) (*integration.Chat, error) {
	model := models.ChatModelFromDomain(chat)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "external_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"client_name", "last_message", "updated_at"}),
		}).
		Create(model).Error; err != nil {
		return nil, err
	}

	// the local id of an existing row differs from the one we generated
	return r.FindByExternalID(ctx, chat.Platform, chat.ExternalID)
}

// FindOrCreate stores chat unless a row with the same (platform, external_id) exists
func (r *GormChatRepository) FindOrCreate(ctx context.Context, chat *integration.Chat) (*integration.Chat, bool, error) {
	model := models.ChatModelFromDomain(chat)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "external_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return model.ToDomain(), true, nil
	}

	existing, err := r.FindByExternalID(ctx, chat.Platform, chat.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// TouchActivity records the latest message preview of a chat. A message older
// than the current preview only moves the unread counter.
func (r *GormChatRepository) TouchActivity(ctx context.Context, id uuid.UUID, lastMessage string, at time.Time, unreadDelta int) error {
	at = at.UTC()
	updates := map[string]any{
		"last_message": gorm.Expr("CASE WHEN updated_at <= ? THEN ? ELSE last_message END", at, lastMessage),
		"updated_at":   gorm.Expr("CASE WHEN updated_at <= ? THEN ? ELSE updated_at END", at, at),
	}
	if unreadDelta != 0 {
		updates["unread_count"] = gorm.Expr("unread_count + ?", unreadDelta)
	}

	result := r.db.WithContext(ctx).
		Model(&models.ChatModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrChatNotFound
	}
	return nil
}

var _ integration.ChatRepository = (*GormChatRepository)(nil)
