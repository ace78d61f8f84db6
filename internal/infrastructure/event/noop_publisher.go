package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// NoopPublisher drops events. It is used when events are disabled.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a NoopPublisher
func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopPublisher{logger: logger}
}

// PublishMessageObserved logs the event at debug level and returns nil
func (p *NoopPublisher) PublishMessageObserved(_ context.Context, event integration.MessageObserved) error {
	p.logger.Debug("Event publishing disabled, dropping event",
		zap.String("event_type", integration.EventTypeMessageObserved),
		zap.String("event_id", event.EventID.String()),
	)
	return nil
}

// DropsEvents implements integration.EventDropper
func (p *NoopPublisher) DropsEvents() bool {
	return true
}

// Close is a no-op
func (p *NoopPublisher) Close() error {
	return nil
}

var (
	_ integration.MessageEventPublisher = (*NoopPublisher)(nil)
	_ integration.EventDropper          = (*NoopPublisher)(nil)
)
