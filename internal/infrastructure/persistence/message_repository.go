package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/persistence/models"
)

// GormMessageRepository implements MessageRepository using GORM
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

var messageConflictColumns = []clause.Column{{Name: "chat_id"}, {Name: "external_id"}}

// UpsertBatch stores messages in one statement. Rows that already exist keep
// their id, read flag and timestamp; text and sender are refreshed.
func (r *GormMessageRepository) UpsertBatch(ctx context.Context, messages []*integration.Message) error {
	if len(messages) == 0 {
		return nil
	}

	batch := make([]*models.MessageModel, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, msg := range messages {
		// a single INSERT cannot touch the same conflict target twice
		if msg.HasExternalID() {
			key := msg.ChatID.String() + "/" + msg.ExternalID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		batch = append(batch, models.MessageModelFromDomain(msg))
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   messageConflictColumns,
			DoUpdates: clause.AssignmentColumns([]string{"text", "sender"}),
		}).
		Create(&batch).Error
}

// InsertIfAbsent stores msg unless (chat_id, external_id) is already present
func (r *GormMessageRepository) InsertIfAbsent(ctx context.Context, msg *integration.Message) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   messageConflictColumns,
			DoNothing: true,
		}).
		Create(models.MessageModelFromDomain(msg))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ExistingExternalIDs returns the subset of externalIDs the chat already holds
func (r *GormMessageRepository) ExistingExternalIDs(ctx context.Context, chatID uuid.UUID, externalIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	var found []string
	if err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("chat_id = ? AND external_id IN ?", chatID, externalIDs).
		Pluck("external_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// Create stores a message unconditionally
func (r *GormMessageRepository) Create(ctx context.Context, msg *integration.Message) error {
	return r.db.WithContext(ctx).Create(models.MessageModelFromDomain(msg)).Error
}

var _ integration.MessageRepository = (*GormMessageRepository)(nil)
