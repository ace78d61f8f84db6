package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/domain/shared"
	"github.com/chatbridge/backend/internal/interfaces/http/dto"
	"github.com/chatbridge/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, code, message string) {
	h.Error(c, http.StatusBadRequest, code, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// errorMapping pairs a bridge error with its response code.
// Order matters: an auth failure wrapped in a send failure reports as auth.
var errorMapping = []struct {
	err  error
	code string
}{
	{integration.ErrChatNotFound, dto.ErrCodeNotFound},
	{integration.ErrEmptyMessageText, dto.ErrCodeValidation},
	{integration.ErrWebhookURLMissing, dto.ErrCodeValidation},
	{integration.ErrInvalidWebhookEvent, dto.ErrCodeValidation},
	{integration.ErrIntegrationNotConfigured, dto.ErrCodeNotConfigured},
	{integration.ErrAuthFailed, dto.ErrCodePlatformAuth},
	{integration.ErrSendFailed, dto.ErrCodeSendFailed},
	{integration.ErrWebhookRegistration, dto.ErrCodeWebhookRegistration},
	{integration.ErrChatFetch, dto.ErrCodePlatformUnavailable},
	{integration.ErrMessageFetch, dto.ErrCodePlatformUnavailable},
	{integration.ErrPlatformRequestFailed, dto.ErrCodePlatformUnavailable},
}

// errorCode returns the response code for err, or ErrCodeInternal
func errorCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.ErrCodeValidation
	}
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return dto.ErrCodeInternal
}

// HandleError converts bridge errors to HTTP responses.
// Unknown errors are reported as internal without their message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code := errorCode(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		message = "An unexpected error occurred"
	}
	h.ErrorWithCode(c, code, message)
}
