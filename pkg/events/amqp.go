package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultExchange = "recruiter.events"
	DefaultProducer = "vai-recruiter"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("events: publish not confirmed by broker")

// AMQPConfig configures the RabbitMQ publisher.
type AMQPConfig struct {
	URL      string
	Exchange string
	Producer string
	Logger   *slog.Logger

	// DialAttempts bounds connection retries at startup.
	DialAttempts uint64
	DialDelay    time.Duration
}

// AMQPPublisher publishes envelopes to a durable topic exchange with
// publisher confirms. The routing key is the event type.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	producer string
	log      *slog.Logger
	now      func() time.Time
}

// DialAMQP connects with capped exponential backoff and declares the
// exchange.
func DialAMQP(ctx context.Context, cfg AMQPConfig) (*AMQPPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("events: amqp url is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	producer := cfg.Producer
	if producer == "" {
		producer = DefaultProducer
	}
	attempts := cfg.DialAttempts
	if attempts == 0 {
		attempts = 5
	}
	delay := cfg.DialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	backoff := retry.WithMaxRetries(attempts-1, retry.WithCappedDuration(time.Minute, retry.NewExponential(delay)))
	attempt := 0
	var conn *amqp.Connection
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			logger.Warn("rabbit dial failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("events: connect to rabbitmq after %d attempts: %w", attempt, err)
	}
	if attempt > 1 {
		logger.Info("rabbit connected", "attempt", attempt)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		producer: producer,
		log:      logger,
		now:      time.Now,
	}, nil
}

// Publish waits for the broker's confirm before returning.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType, correlationID string, data any) error {
	env := NewEnvelope(eventType, correlationID, p.producer, data, p.now())
	msg, err := publishing(env)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("events: enable confirms: %w", err)
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, eventType, false, false, msg)
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", eventType, err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("events: await confirm %s: %w", eventType, err)
	}
	if !ok {
		return ErrNotConfirmed
	}
	p.log.Info("published", "type", eventType, "exchange", p.exchange, "event_id", env.Meta.ID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

func publishing(env Envelope) (amqp.Publishing, error) {
	body, err := env.Marshal()
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: encode %s: %w", env.Meta.Type, err)
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		AppId:         env.Meta.Producer,
		Timestamp:     env.Meta.Time,
		Body:          body,
	}, nil
}
