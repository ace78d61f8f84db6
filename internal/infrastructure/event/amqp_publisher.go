package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/chatbridge/backend/internal/domain/integration"
)

// Publisher errors
var (
	ErrPublishNacked     = errors.New("event: broker rejected the message")
	ErrConfirmTimeout    = errors.New("event: timed out waiting for broker confirm")
	ErrPublisherClosed   = errors.New("event: publisher is closed")
	ErrConfirmChanClosed = errors.New("event: confirm channel closed")
)

const maxDialDelay = 60 * time.Second

// AMQPConfig configures the AMQP publisher
type AMQPConfig struct {
	URL            string
	Exchange       string
	Producer       string
	ConfirmTimeout time.Duration
	DialAttempts   int
	DialDelay      time.Duration
}

// publishChannel is the part of *amqp.Channel the publisher uses
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes MessageObserved events to a topic exchange with
// publisher confirms. One channel is shared and publishes are serialized.
type AMQPPublisher struct {
	mu             sync.Mutex
	ch             publishChannel
	confirms       <-chan amqp.Confirmation
	conn           io.Closer
	exchange       string
	producer       string
	confirmTimeout time.Duration
	logger         *zap.Logger
	closed         bool
}

// NewAMQPPublisher dials the broker, declares the exchange and puts the channel in confirm mode
func NewAMQPPublisher(ctx context.Context, cfg AMQPConfig, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := dialWithRetry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	logger.Info("AMQP publisher ready", zap.String("exchange", cfg.Exchange))
	return newAMQPPublisher(ch, confirms, conn, cfg, logger), nil
}

func newAMQPPublisher(ch publishChannel, confirms <-chan amqp.Confirmation, conn io.Closer, cfg AMQPConfig, logger *zap.Logger) *AMQPPublisher {
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	producer := cfg.Producer
	if producer == "" {
		producer = "chat-bridge"
	}
	return &AMQPPublisher{
		ch:             ch,
		confirms:       confirms,
		conn:           conn,
		exchange:       cfg.Exchange,
		producer:       producer,
		confirmTimeout: timeout,
		logger:         logger,
	}
}

// dialWithRetry connects with exponential backoff, honoring ctx cancellation
func dialWithRetry(ctx context.Context, cfg AMQPConfig, logger *zap.Logger) (*amqp.Connection, error) {
	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.DialDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		conn, err := amqp.Dial(cfg.URL)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		sleep := delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		logger.Warn("AMQP dial failed",
			zap.Int("attempt", i),
			zap.Duration("sleep", sleep),
			zap.Error(err),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to AMQP broker after %d attempts: %w", attempts, lastErr)
}

// PublishMessageObserved publishes event and waits for the broker confirm
func (p *AMQPPublisher) PublishMessageObserved(ctx context.Context, event integration.MessageObserved) error {
	env, err := NewEnvelope(integration.EventTypeMessageObserved, event.EventID.String(), "", p.producer, event.ObservedAt, event)
	if err != nil {
		return err
	}
	return p.publish(ctx, integration.EventTypeMessageObserved, env)
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         p.producer,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	timer := time.NewTimer(p.confirmTimeout)
	defer timer.Stop()
	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return ErrConfirmChanClosed
		}
		if !confirm.Ack {
			return ErrPublishNacked
		}
	case <-timer.C:
		return ErrConfirmTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	p.logger.Debug("Event published",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", routingKey),
		zap.String("message_id", env.Meta.ID),
	)
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

var _ integration.MessageEventPublisher = (*AMQPPublisher)(nil)
