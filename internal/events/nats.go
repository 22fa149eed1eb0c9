package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher implements Publisher over a NATS connection.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher connects to NATS and publishes under the given subject
// prefix.
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Close closes the NATS connection.
func (n *NATSPublisher) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

// PublishDecision publishes decision events, with a routing key per outcome
// so consumers can subscribe to executions only.
func (n *NATSPublisher) PublishDecision(ctx context.Context, event DecisionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := n.subject + ".decisions"
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish decision event")
		return err
	}

	if event.Outcome != "" {
		routingKey := subject + "." + event.Outcome
		if err := n.conn.Publish(routingKey, data); err != nil {
			n.logger.Error().Err(err).Str("routing_key", routingKey).Msg("Failed to publish to routing key")
		}
	}

	n.logger.Debug().
		Str("cycle_id", event.CycleID).
		Str("outcome", event.Outcome).
		Str("subject", subject).
		Msg("Published decision event")
	return nil
}

// PublishFeedback publishes feedback events.
func (n *NATSPublisher) PublishFeedback(ctx context.Context, event FeedbackEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := n.subject + ".feedback"
	if err := n.conn.Publish(subject, data); err != nil {
		n.logger.Error().Err(err).Str("subject", subject).Msg("Failed to publish feedback event")
		return err
	}

	n.logger.Debug().
		Str("suggestion_id", event.SuggestionID).
		Bool("success", event.Success).
		Str("subject", subject).
		Msg("Published feedback event")
	return nil
}
