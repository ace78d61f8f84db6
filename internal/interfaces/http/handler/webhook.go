package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/infrastructure/marketplace"
	"github.com/chatbridge/backend/internal/interfaces/http/dto"
)

// EventIngester stores pushed webhook events
type EventIngester interface {
	IngestEvent(ctx context.Context, event integration.WebhookEvent) (*integration.IngestResult, error)
}

// WebhookHandler receives platform push notifications
type WebhookHandler struct {
	BaseHandler
	ingester          EventIngester
	ackOnStoreFailure bool
}

// NewWebhookHandler creates a new WebhookHandler.
// With ackOnStoreFailure unset, a failed insert answers 500 so the platform redelivers.
func NewWebhookHandler(ingester EventIngester, ackOnStoreFailure bool) *WebhookHandler {
	return &WebhookHandler{ingester: ingester, ackOnStoreFailure: ackOnStoreFailure}
}

// Receive handles POST /webhooks/marketplace
func (h *WebhookHandler) Receive(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.L(ctx)

	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.ErrorWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, dto.ErrCodeBadRequest, "Failed to read request body")
		return
	}

	// undecodable and incomplete events are acknowledged so the platform stops redelivering them
	event, err := marketplace.DecodeWebhook(body)
	if err != nil {
		log.Warn("Discarding undecodable webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, dto.WebhookAck{OK: true, Outcome: string(integration.IngestOutcomeIgnored)})
		return
	}

	result, err := h.ingester.IngestEvent(ctx, event)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.WebhookAck{OK: true, Outcome: string(result.Outcome)})
	case errors.Is(err, integration.ErrInvalidWebhookEvent):
		log.Warn("Discarding invalid webhook event", zap.Error(err))
		c.JSON(http.StatusOK, dto.WebhookAck{OK: true, Outcome: string(integration.IngestOutcomeIgnored)})
	case h.ackOnStoreFailure:
		log.Error("Webhook event lost, acknowledged anyway", zap.Error(err))
		c.JSON(http.StatusOK, dto.WebhookAck{OK: true, Outcome: "error"})
	default:
		log.Error("Webhook event not stored, asking for redelivery", zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, dto.WebhookAck{OK: false})
	}
}
