package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/pathway/internal/domain"
)

// publisher is the part of Connection the producer needs.
type publisher interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// Producer publishes lifecycle events to the queue
type Producer struct {
	conn    publisher
	timeout time.Duration
	logger  *slog.Logger
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection, logger *slog.Logger) *Producer {
	return newProducer(conn, logger)
}

func newProducer(conn publisher, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{conn: conn, timeout: 5 * time.Second, logger: logger}
}

// PublishEvent publishes one encoded event
func (p *Producer) PublishEvent(ctx context.Context, msg *EventMessage) error {
	if err := p.conn.PublishJSON(ctx, EventsQueueName, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", msg.EventType, err)
	}

	p.logger.Debug("published event",
		"event_id", msg.EventID,
		"event_type", msg.EventType,
		"program_id", msg.ProgramID,
	)
	return nil
}

// Handler returns a dispatcher subscriber that forwards every event to the
// queue. Events are already committed, so failures are logged and dropped.
func (p *Producer) Handler() domain.EventHandler {
	return func(event domain.Event) {
		msg, err := NewEventMessage(event)
		if err != nil {
			p.logger.Warn("encode event failed", "event_type", event.EventType(), "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.PublishEvent(ctx, msg); err != nil {
			p.logger.Warn("publish event failed",
				"event_id", msg.EventID,
				"event_type", msg.EventType,
				"error", err,
			)
		}
	}
}
