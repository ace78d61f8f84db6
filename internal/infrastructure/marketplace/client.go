package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the messaging API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client implements integration.MarketplaceAPI over the platform's REST API
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *telemetry.BridgeMetrics
}

// NewClient creates a new API client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		httpClient: config.newHTTPClient(),
	}
	if config.RateLimitRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), config.RateLimitBurst)
	}
	return c, nil
}

// SetMetrics sets the collector for per-request latency and outcome
func (c *Client) SetMetrics(m *telemetry.BridgeMetrics) {
	c.metrics = m
}

// GetSelf returns the account the token belongs to
func (c *Client) GetSelf(ctx context.Context, token string) (*integration.RemoteAccount, error) {
	body, err := c.doRequest(ctx, "get_self", http.MethodGet, "/accounts/self", token, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrIdentityResolution, err)
	}

	var resp selfResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", integration.ErrIdentityResolution, integration.ErrPlatformInvalidResponse, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: %w: account id missing", integration.ErrIdentityResolution, integration.ErrPlatformInvalidResponse)
	}
	return &integration.RemoteAccount{ID: string(resp.ID)}, nil
}

// ListChats returns up to limit most recent chats of the account
func (c *Client) ListChats(ctx context.Context, token, accountID string, limit int) ([]integration.RemoteChat, error) {
	path := "/accounts/" + url.PathEscape(accountID) + "/chats"
	body, err := c.doRequest(ctx, "list_chats", http.MethodGet, path, token, limitQuery(limit), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrChatFetch, err)
	}

	var payloads []chatPayload
	if isJSONArray(body) {
		err = json.Unmarshal(body, &payloads)
	} else {
		var resp chatsResponse
		err = json.Unmarshal(body, &resp)
		payloads = resp.Chats
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", integration.ErrChatFetch, integration.ErrPlatformInvalidResponse, err)
	}

	chats := make([]integration.RemoteChat, 0, len(payloads))
	for _, p := range payloads {
		chats = append(chats, p.toDomain())
	}
	return chats, nil
}

// ListMessages returns up to limit most recent messages of a chat
func (c *Client) ListMessages(ctx context.Context, token, accountID, chatID string, limit int) ([]integration.RemoteMessage, error) {
	path := "/accounts/" + url.PathEscape(accountID) + "/chats/" + url.PathEscape(chatID) + "/messages"
	body, err := c.doRequest(ctx, "list_messages", http.MethodGet, path, token, limitQuery(limit), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrMessageFetch, err)
	}

	var payloads []messagePayload
	if isJSONArray(body) {
		err = json.Unmarshal(body, &payloads)
	} else {
		var resp messagesResponse
		err = json.Unmarshal(body, &resp)
		payloads = resp.Messages
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", integration.ErrMessageFetch, integration.ErrPlatformInvalidResponse, err)
	}

	messages := make([]integration.RemoteMessage, 0, len(payloads))
	for _, p := range payloads {
		messages = append(messages, p.toDomain(chatID))
	}
	return messages, nil
}

// SendTextMessage posts a text message into a chat
func (c *Client) SendTextMessage(ctx context.Context, token, accountID, chatID, text string) (*integration.SentMessage, error) {
	path := "/accounts/" + url.PathEscape(accountID) + "/chats/" + url.PathEscape(chatID) + "/messages"
	req := sendMessageRequest{
		Message: sendMessageText{Text: text},
		Type:    integration.MessageTypeText,
	}
	body, err := c.doRequest(ctx, "send_message", http.MethodPost, path, token, nil, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrSendFailed, err)
	}

	sent := &integration.SentMessage{Raw: json.RawMessage(body)}
	var resp sendMessageResponse
	// the send succeeded; an unexpected body only costs us the remote id
	if json.Unmarshal(body, &resp) == nil {
		sent.ID = string(resp.ID)
		sent.Created = resp.Created
	}
	if !json.Valid(body) {
		sent.Raw = nil
	}
	return sent, nil
}

// RegisterWebhook subscribes callbackURL to push notifications
func (c *Client) RegisterWebhook(ctx context.Context, token, callbackURL string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, "register_webhook", http.MethodPost, "/webhook", token, nil, registerWebhookRequest{URL: callbackURL})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrWebhookRegistration, err)
	}
	if len(bytes.TrimSpace(body)) == 0 || !json.Valid(body) {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(body), nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated JSON request and returns the response body
func (c *Client) doRequest(ctx context.Context, operation, method, path, token string, query url.Values, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", integration.ErrPlatformRequestFailed, err)
		}
	}

	endpoint := c.config.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marketplace: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("marketplace: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordPlatformRequest(ctx, operation, time.Since(started), false)
		return nil, fmt.Errorf("%w: %v", integration.ErrPlatformRequestFailed, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordPlatformRequest(ctx, operation, time.Since(started), resp.StatusCode < 300)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("marketplace: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %w: HTTP %d", integration.ErrPlatformRequestFailed, integration.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrPlatformRequestFailed, resp.StatusCode)
	}
	return body, nil
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}

func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '['
}

var _ integration.MarketplaceAPI = (*Client)(nil)
