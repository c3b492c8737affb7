// Package events publishes router run events to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vargasjr/internal/domain"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// RunCompleted is the routing key and event type of a finished router run.
const RunCompleted = "vargasjr.run.completed.v1"

const producer = "vargasjr"

// Meta describes one emitted event.
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope wraps every published payload.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope wraps a run event. The execution id doubles as correlation id.
func NewEnvelope(evt domain.RunEvent, now time.Time) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: evt.ExecutionID,
			Producer:      producer,
			Time:          now.UTC(),
			Type:          RunCompleted,
		},
		Data: evt,
	}
}

func publishing(env Envelope) (amqp091.Publishing, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("encode %s: %w", env.Meta.Type, err)
	}
	return amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Timestamp:     env.Meta.Time,
		Type:          env.Meta.Type,
		Body:          body,
	}, nil
}

// AMQP publishes to a durable topic exchange.
type AMQP struct {
	conn     *amqp091.Connection
	exchange string
	logger   *slog.Logger
}

// Dial connects and declares the exchange.
func Dial(url, exchange string, logger *slog.Logger) (*AMQP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{conn: conn, exchange: exchange, logger: logger}, nil
}

// PublishRun implements domain.EventPublisher.
func (a *AMQP) PublishRun(ctx context.Context, evt domain.RunEvent) error {
	pub, err := publishing(NewEnvelope(evt, time.Now()))
	if err != nil {
		return err
	}
	ch, err := a.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, a.exchange, RunCompleted, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", RunCompleted, err)
	}
	a.logger.Debug("event published", "exchange", a.exchange, "key", RunCompleted, "execution_id", evt.ExecutionID)
	return nil
}

func (a *AMQP) Close() error { return a.conn.Close() }

// Nop discards events. It is used when events are disabled.
type Nop struct{}

func (Nop) PublishRun(context.Context, domain.RunEvent) error { return nil }
func (Nop) Close() error                                      { return nil }
