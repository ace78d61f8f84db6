package integration

import "errors"

// ---------------------------------------------------------------------------
// Bridge Errors
// ---------------------------------------------------------------------------

var (
	// ErrIntegrationNotConfigured is returned when no credentials are stored for a platform
	ErrIntegrationNotConfigured = errors.New("integration: platform integration not configured")
	// ErrAuthFailed is returned when the token exchange is rejected or unreachable.
	// It is fatal for the operation that needed the token.
	ErrAuthFailed = errors.New("integration: platform authentication failed")
	// ErrIdentityResolution marks a failed account lookup. It is only ever logged.
	ErrIdentityResolution = errors.New("integration: account identity resolution failed")
	// ErrChatFetch is returned when the remote chat list cannot be read
	ErrChatFetch = errors.New("integration: chat list fetch failed")
	// ErrMessageFetch is returned when the remote message list for a chat cannot be read
	ErrMessageFetch = errors.New("integration: message list fetch failed")
	// ErrChatNotFound is returned when a local chat id has no mirror row
	ErrChatNotFound = errors.New("integration: chat not found")
	// ErrSendFailed is returned when the remote API rejects an outbound message
	ErrSendFailed = errors.New("integration: send message failed")
	// ErrWebhookRegistration is returned when the remote API rejects a webhook subscription
	ErrWebhookRegistration = errors.New("integration: webhook registration failed")
	// ErrWebhookURLMissing is returned when registration is requested without a callback URL
	ErrWebhookURLMissing = errors.New("integration: webhook url not configured")
	// ErrInvalidWebhookEvent is returned for webhook payloads missing required fields
	ErrInvalidWebhookEvent = errors.New("integration: invalid webhook event")
	// ErrPlatformRequestFailed is returned for non-success remote responses
	ErrPlatformRequestFailed = errors.New("integration: platform request failed")
	// ErrPlatformInvalidResponse is returned when a remote body cannot be decoded
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	// ErrEmptyMessageText is returned when an outbound message has no text
	ErrEmptyMessageText = errors.New("integration: message text is empty")
)
