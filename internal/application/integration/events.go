package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
	"github.com/chatbridge/backend/internal/infrastructure/logger"
)

// publishObserved emits one MessageObserved event per message.
// Publishing is best effort: failures are logged and never reach the caller.
func publishObserved(ctx context.Context, publisher integration.MessageEventPublisher, chat *integration.Chat, messages []*integration.Message, source string, now time.Time) {
	if publisher == nil {
		return
	}
	for _, msg := range messages {
		event := integration.NewMessageObserved(chat, msg, source, now)
		if err := publisher.PublishMessageObserved(ctx, event); err != nil {
			logger.L(ctx).Warn("Failed to publish message event",
				zap.String("chat_external_id", chat.ExternalID),
				zap.String("message_external_id", msg.ExternalID),
				zap.String("source", source),
				zap.Error(err),
			)
		}
	}
}
