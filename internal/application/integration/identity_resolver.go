package integration

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
)

// IdentityResolver keeps the stored shop account id in line with the
// account the token actually belongs to
type IdentityResolver struct {
	api         integration.MarketplaceAPI
	credentials *CredentialStore
}

// NewIdentityResolver creates a new IdentityResolver
func NewIdentityResolver(api integration.MarketplaceAPI, credentials *CredentialStore) *IdentityResolver {
	return &IdentityResolver{api: api, credentials: credentials}
}

// ResolveAccountID returns the live account id, persisting it when it differs
// from stored. Any failure is logged and stored is returned; it never aborts.
func (r *IdentityResolver) ResolveAccountID(ctx context.Context, token, stored string) string {
	log := logger.L(ctx)

	account, err := r.api.GetSelf(ctx, token)
	if err != nil {
		log.Warn("Account identity resolution failed, using stored account id",
			zap.String("stored_account_id", stored),
			zap.Error(err),
		)
		return stored
	}
	if account == nil || account.ID == "" {
		log.Warn("Platform returned no account id, using stored account id",
			zap.String("stored_account_id", stored),
		)
		return stored
	}
	if account.ID == stored {
		return stored
	}

	if err := r.credentials.SaveAccountID(ctx, account.ID); err != nil {
		log.Warn("Failed to persist resolved account id",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	} else {
		log.Info("Stored account id corrected",
			zap.String("previous_account_id", stored),
			zap.String("account_id", account.ID),
		)
	}
	return account.ID
}
