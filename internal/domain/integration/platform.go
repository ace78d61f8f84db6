package integration

import (
	"context"
	"encoding/json"
	"time"
)

// ---------------------------------------------------------------------------
// PlatformCode identifies the marketplace a bridge instance talks to
// ---------------------------------------------------------------------------

// PlatformCode identifies a marketplace. One bridge runs per platform.
type PlatformCode string

const (
	// PlatformCodeAvito is the default marketplace served by the bridge
	PlatformCodeAvito PlatformCode = "avito"
)

// IsValid returns true if the code is a non-empty lowercase identifier
func (c PlatformCode) IsValid() bool {
	if c == "" || len(c) > 50 {
		return false
	}
	for _, r := range string(c) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// String returns the string representation of PlatformCode
func (c PlatformCode) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// Access tokens
// ---------------------------------------------------------------------------

// Credentials are the client id/secret pair used for the token exchange
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// AccessToken is a bearer token together with its expiry instant
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// UsableAt reports whether the token can still be sent at now, keeping a
// safety margin of skew before the expiry. Tokens without a known expiry are
// never reused.
func (t *AccessToken) UsableAt(now time.Time, skew time.Duration) bool {
	if t == nil || t.Value == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(skew).Before(t.ExpiresAt)
}

// TokenSource performs the client-credentials exchange against the platform
type TokenSource interface {
	Token(ctx context.Context, creds Credentials) (*AccessToken, error)
}

// TokenCache stores at most one token per platform.
// Get returns (nil, nil) on a miss.
type TokenCache interface {
	Get(ctx context.Context, platform PlatformCode) (*AccessToken, error)
	Set(ctx context.Context, platform PlatformCode, token *AccessToken) error
	Invalidate(ctx context.Context, platform PlatformCode) error
}

// ---------------------------------------------------------------------------
// MarketplaceAPI port
// ---------------------------------------------------------------------------

// MarketplaceAPI is the remote private-messaging API of a marketplace.
// Every call carries a bearer token obtained from a TokenSource.
type MarketplaceAPI interface {
	// GetSelf returns the account the token belongs to
	GetSelf(ctx context.Context, token string) (*RemoteAccount, error)
	// ListChats returns the most recent chats of the account
	ListChats(ctx context.Context, token, accountID string, limit int) ([]RemoteChat, error)
	// ListMessages returns the most recent messages of one chat
	ListMessages(ctx context.Context, token, accountID, chatID string, limit int) ([]RemoteMessage, error)
	// SendTextMessage posts a text message into a chat on behalf of the account
	SendTextMessage(ctx context.Context, token, accountID, chatID, text string) (*SentMessage, error)
	// RegisterWebhook subscribes url to push notifications
	RegisterWebhook(ctx context.Context, token, url string) (json.RawMessage, error)
}
