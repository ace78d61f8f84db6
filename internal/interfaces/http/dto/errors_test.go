package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbridge/backend/internal/domain/integration"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeNotConfigured, http.StatusServiceUnavailable},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnknownAction, http.StatusBadRequest},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodePlatformAuth, http.StatusBadGateway},
		{ErrCodeSendFailed, http.StatusBadGateway},
		{ErrCodeWebhookRegistration, http.StatusBadGateway},
		{ErrCodePlatformUnavailable, http.StatusBadGateway},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-1", []ValidationDetail{
		{Field: "chatId", Message: "This field is required"},
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "ERR_VALIDATION",
			"message": "Request validation failed",
			"request_id": "req-1",
			"details": [{"field": "chatId", "message": "This field is required"}]
		}
	}`, string(data))
}

func TestNewSyncChatsResponse(t *testing.T) {
	t.Run("partial sync is still a success", func(t *testing.T) {
		resp := NewSyncChatsResponse(&integration.SyncResult{
			Status: integration.SyncStatusPartial, Total: 3, Synced: 2, Failed: 1,
		})
		assert.True(t, resp.Success)
		assert.Equal(t, "PARTIAL", resp.Status)
		assert.Equal(t, 2, resp.Synced)
	})

	t.Run("failed sync", func(t *testing.T) {
		resp := NewSyncChatsResponse(&integration.SyncResult{Status: integration.SyncStatusFailed})
		assert.False(t, resp.Success)
	})
}

func TestNewMessageResponse(t *testing.T) {
	msg := &integration.Message{
		ID:         uuid.New(),
		ChatID:     uuid.New(),
		ExternalID: "m1",
		Text:       "Hi",
		Sender:     integration.SenderShop,
		IsRead:     true,
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	resp := NewMessageResponse(msg)
	assert.Equal(t, msg.ID.String(), resp.ID)
	assert.Equal(t, "shop", resp.Sender)
	assert.True(t, resp.IsRead)
}
