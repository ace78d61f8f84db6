package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeNotConfigured is used when the platform integration has no credentials
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeValidation is used when request fields fail validation
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeUnknownAction is used when the action name is not recognised
	ErrCodeUnknownAction = "ERR_UNKNOWN_ACTION"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when a client exceeds the request rate
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a chat is not mirrored locally
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Platform error codes
const (
	// ErrCodePlatformAuth is used when the marketplace rejects the credentials
	ErrCodePlatformAuth = "ERR_PLATFORM_AUTH"
	// ErrCodeSendFailed is used when the marketplace rejects an outbound message
	ErrCodeSendFailed = "ERR_SEND_FAILED"
	// ErrCodeWebhookRegistration is used when the marketplace rejects a subscription
	ErrCodeWebhookRegistration = "ERR_WEBHOOK_REGISTRATION"
	// ErrCodePlatformUnavailable is used for other failed remote calls
	ErrCodePlatformUnavailable = "ERR_PLATFORM_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeNotConfigured: http.StatusServiceUnavailable,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeUnknownAction:   http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,

	ErrCodeNotFound: http.StatusNotFound,

	// the bridge acts as a gateway for remote failures
	ErrCodePlatformAuth:        http.StatusBadGateway,
	ErrCodeSendFailed:          http.StatusBadGateway,
	ErrCodeWebhookRegistration: http.StatusBadGateway,
	ErrCodePlatformUnavailable: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
