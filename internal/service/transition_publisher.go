package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/educlass-api/internal/dto"
)

// TransitionPublisher forwards applied navigation transitions to other systems.
type TransitionPublisher interface {
	Publish(ctx context.Context, event dto.TransitionEvent) error
}

// NATSTransitionPublisher publishes transitions as JSON on a NATS subject.
type NATSTransitionPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSTransitionPublisher constructs a publisher for the given subject.
func NewNATSTransitionPublisher(conn *nats.Conn, subject string) *NATSTransitionPublisher {
	return &NATSTransitionPublisher{conn: conn, subject: subject}
}

func (p *NATSTransitionPublisher) Publish(_ context.Context, event dto.TransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}
	return p.conn.Publish(p.subject, payload)
}

// LogTransitionPublisher only logs transitions. Used when no bus is configured.
type LogTransitionPublisher struct {
	logger zerolog.Logger
}

// NewLogTransitionPublisher constructs a logging publisher.
func NewLogTransitionPublisher(logger zerolog.Logger) *LogTransitionPublisher {
	return &LogTransitionPublisher{logger: logger.With().Str("component", "transition_publisher").Logger()}
}

func (l *LogTransitionPublisher) Publish(_ context.Context, event dto.TransitionEvent) error {
	l.logger.Debug().
		Str("device_id", event.DeviceID).
		Str("event", event.Event).
		Str("from", event.From).
		Str("to", event.To).
		Msg("navigation transition")
	return nil
}
