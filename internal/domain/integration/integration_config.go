package integration

import (
	"context"
	"time"
)

// IntegrationConfig holds the stored credentials of one platform integration
// and the shop's account id on that platform.
type IntegrationConfig struct {
	Service      PlatformCode
	ClientID     string
	ClientSecret string
	AccountID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Credentials returns the client credentials pair
func (c *IntegrationConfig) Credentials() Credentials {
	return Credentials{ClientID: c.ClientID, ClientSecret: c.ClientSecret}
}

// IsConfigured returns true if a token exchange can be attempted
func (c *IntegrationConfig) IsConfigured() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// IntegrationConfigRepository persists integration configs.
// FindByService returns ErrIntegrationNotConfigured when no row exists.
type IntegrationConfigRepository interface {
	FindByService(ctx context.Context, service PlatformCode) (*IntegrationConfig, error)
	UpdateAccountID(ctx context.Context, service PlatformCode, accountID string) error
	Save(ctx context.Context, cfg *IntegrationConfig) error
}
