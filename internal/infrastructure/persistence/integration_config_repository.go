package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationConfigRepository implements IntegrationConfigRepository using GORM
type GormIntegrationConfigRepository struct {
	db *gorm.DB
}

// NewGormIntegrationConfigRepository creates a new GormIntegrationConfigRepository
func NewGormIntegrationConfigRepository(db *gorm.DB) *GormIntegrationConfigRepository {
	return &GormIntegrationConfigRepository{db: db}
}

// FindByService loads the credentials stored for a platform
func (r *GormIntegrationConfigRepository) FindByService(ctx context.Context, service integration.PlatformCode) (*integration.IntegrationConfig, error) {
	var model models.IntegrationConfigModel
	if err := r.db.WithContext(ctx).First(&model, "service = ?", service.String()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotConfigured
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdateAccountID stores a new account id for the platform
func (r *GormIntegrationConfigRepository) UpdateAccountID(ctx context.Context, service integration.PlatformCode, accountID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationConfigModel{}).
		Where("service = ?", service.String()).
		Updates(map[string]any{
			"account_id": accountID,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrIntegrationNotConfigured
	}
	return nil
}

// Save inserts or replaces the credentials of a platform
func (r *GormIntegrationConfigRepository) Save(ctx context.Context, cfg *integration.IntegrationConfig) error {
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	model := models.IntegrationConfigModelFromDomain(cfg)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "service"}},
			DoUpdates: clause.AssignmentColumns([]string{"client_id", "client_secret", "account_id", "updated_at"}),
		}).
		Create(model).Error
}

var _ integration.IntegrationConfigRepository = (*GormIntegrationConfigRepository)(nil)
