package integration

import (
	"context"
	"errors"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// CredentialStore reads the stored integration config of one platform
type CredentialStore struct {
	repo     integration.IntegrationConfigRepository
	platform integration.PlatformCode
}

// NewCredentialStore creates a new CredentialStore
func NewCredentialStore(repo integration.IntegrationConfigRepository, platform integration.PlatformCode) *CredentialStore {
	return &CredentialStore{repo: repo, platform: platform}
}

// Platform returns the platform the store serves
func (s *CredentialStore) Platform() integration.PlatformCode {
	return s.platform
}

// Load returns the config, or ErrIntegrationNotConfigured when no usable
// credentials are stored
func (s *CredentialStore) Load(ctx context.Context) (*integration.IntegrationConfig, error) {
	cfg, err := s.repo.FindByService(ctx, s.platform)
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, integration.ErrIntegrationNotConfigured
	}
	return cfg, nil
}

// AccountID does a fresh read of the stored account id.
// An unconfigured platform yields an empty id.
func (s *CredentialStore) AccountID(ctx context.Context) (string, error) {
	cfg, err := s.repo.FindByService(ctx, s.platform)
	if err != nil {
		if errors.Is(err, integration.ErrIntegrationNotConfigured) {
			return "", nil
		}
		return "", err
	}
	return cfg.AccountID, nil
}

// SaveAccountID persists a corrected account id
func (s *CredentialStore) SaveAccountID(ctx context.Context, accountID string) error {
	return s.repo.UpdateAccountID(ctx, s.platform, accountID)
}
