package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
	"github.com/chatbridge/backend/internal/interfaces/http/dto"
)

// ChatSyncer runs a pull sync
type ChatSyncer interface {
	SyncChats(ctx context.Context) (*integration.SyncResult, error)
}

// MessageSender relays a shop reply to the platform
type MessageSender interface {
	SendMessage(ctx context.Context, chatID uuid.UUID, text string) (*integration.SendResult, error)
}

// WebhookSubscriber registers the bridge callback with the platform
type WebhookSubscriber interface {
	RegisterWebhook(ctx context.Context) (json.RawMessage, error)
}

// BridgeHandler dispatches dashboard actions to the bridge services
type BridgeHandler struct {
	BaseHandler
	syncer     ChatSyncer
	sender     MessageSender
	subscriber WebhookSubscriber
	validate   *validator.Validate
}

// NewBridgeHandler creates a new BridgeHandler
func NewBridgeHandler(syncer ChatSyncer, sender MessageSender, subscriber WebhookSubscriber) *BridgeHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BridgeHandler{
		syncer:     syncer,
		sender:     sender,
		subscriber: subscriber,
		validate:   v,
	}
}

// Dispatch handles POST /bridge/actions.
// A body that is not JSON is treated as an empty action and rejected as unknown.
func (h *BridgeHandler) Dispatch(c *gin.Context) {
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

	var req dto.ActionRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			logger.L(c.Request.Context()).Debug("Action body is not valid JSON", zap.Error(err))
			req = dto.ActionRequest{}
		}
	}

	switch req.Action {
	case dto.ActionSyncChats:
		h.syncChats(c)
	case dto.ActionSendMessage:
		h.sendMessage(c, req)
	case dto.ActionRegisterWebhook:
		h.registerWebhook(c)
	default:
		h.BadRequest(c, dto.ErrCodeUnknownAction, "Unknown action: "+strconv.Quote(req.Action))
	}
}

func (h *BridgeHandler) syncChats(c *gin.Context) {
	result, err := h.syncer.SyncChats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSyncChatsResponse(result))
}

func (h *BridgeHandler) sendMessage(c *gin.Context, req dto.ActionRequest) {
	params := dto.SendMessageParams{ChatID: strings.TrimSpace(req.ChatID), Text: req.Text}
	if err := h.validate.Struct(params); err != nil {
		h.ValidationError(c, validationDetails(err))
		return
	}
	if strings.TrimSpace(params.Text) == "" {
		h.HandleError(c, integration.ErrEmptyMessageText)
		return
	}

	result, err := h.sender.SendMessage(c.Request.Context(), uuid.MustParse(params.ChatID), params.Text)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SendMessageResponse{
		Success: true,
		Message: dto.NewMessageResponse(result.Message),
		Result:  result.Response,
	})
}

func (h *BridgeHandler) registerWebhook(c *gin.Context) {
	result, err := h.subscriber.RegisterWebhook(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegisterWebhookResponse{Success: true, Result: result})
}

// validationDetails converts validator errors into response details
func validationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dto.ValidationDetail{{Message: err.Error()}}
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

// validationMessage returns a human-readable validation message
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Must be a valid UUID"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	default:
		return "Invalid value"
	}
}
