package events

import (
	"context"

	"go.uber.org/zap"

	"storefront/internal/logging"
)

// LogPublisher writes events to the structured log. It is the default backend.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logging.OrNop(logger)}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.logger.Info("event",
		zap.String("event_id", e.EventID),
		zap.String("type", e.Type),
		zap.String("order_id", e.OrderID),
		zap.String("user_id", e.UserID),
		zap.ByteString("payload", e.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
