package marketplace

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// ClientCredentialsTokenSource exchanges client id/secret for an access token
// with a form-encoded client_credentials grant
type ClientCredentialsTokenSource struct {
	tokenURL   string
	httpClient *http.Client
}

// NewClientCredentialsTokenSource creates a token source for the configured token URL
func NewClientCredentialsTokenSource(config *Config) (*ClientCredentialsTokenSource, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ClientCredentialsTokenSource{
		tokenURL:   config.TokenURL,
		httpClient: config.newHTTPClient(),
	}, nil
}

// Token implements integration.TokenSource
func (s *ClientCredentialsTokenSource) Token(ctx context.Context, creds integration.Credentials) (*integration.AccessToken, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client credentials are empty", integration.ErrAuthFailed)
	}

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     s.tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := cc.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("%w: token endpoint returned HTTP %d", integration.ErrAuthFailed, retrieveErr.Response.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrAuthFailed, err)
	}

	return &integration.AccessToken{
		Value:     tok.AccessToken,
		ExpiresAt: tok.Expiry,
	}, nil
}

var _ integration.TokenSource = (*ClientCredentialsTokenSource)(nil)
