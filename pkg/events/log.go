package events

import (
	"context"
	"log/slog"
	"time"
)

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	Logger   *slog.Logger
	Producer string
}

func (p LogPublisher) Publish(ctx context.Context, eventType, correlationID string, data any) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	env := NewEnvelope(eventType, correlationID, p.Producer, data, time.Now())
	body, err := env.Marshal()
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "event", "type", eventType, "event_id", env.Meta.ID, "body", string(body))
	return nil
}
