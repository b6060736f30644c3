package audit

import (
	"context"
	"encoding/json"

	"relay-chat/internal/events"
	"relay-chat/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher ships audit envelopes to the audit exchange. The routing key is the event type.
type Publisher interface {
	Publish(ctx context.Context, envelope events.AuditEnvelope) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher, or a noop publisher when AMQP is disabled or
// the broker cannot be reached.
func NewPublisher(amqpURL, exchange string, log *zap.Logger) Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	if amqpURL == "" {
		log.Info("audit disabled, using noop", zap.String("reason", "empty amqp url"))
		return NewNoop(log)
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn("audit disabled, using noop", zap.Error(err))
		return NewNoop(log)
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn("audit disabled, using noop", zap.Error(err))
		_ = conn.Close()
		return NewNoop(log)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		log.Warn("audit disabled, using noop", zap.Error(err))
		_ = ch.Close()
		_ = conn.Close()
		return NewNoop(log)
	}

	log.Info("audit publisher connected", zap.String("exchange", exchange))
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      *zap.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, envelope events.AuditEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, envelope.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    envelope.OccurredAt,
		Body:         body,
	})
	if err != nil {
		observability.IncAMQPPublishError()
		p.log.Warn("audit publish failed", zap.String("event_type", envelope.EventType), zap.Error(err))
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	log *zap.Logger
}

func NewNoop(log *zap.Logger) Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return noopPublisher{log: log}
}

func (p noopPublisher) Publish(ctx context.Context, envelope events.AuditEnvelope) error {
	p.log.Debug("audit noop publish",
		zap.String("event_type", envelope.EventType),
		zap.String("aggregate_id", envelope.AggregateID),
	)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// Mode reports the publisher mode for logging.
func Mode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}
