package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/rail-ticket-gate/internal/queue"
)

// Publisher sends gate events to RabbitMQ. Publishing is strictly
// best effort: every error is logged and returned, and callers on
// the request path ignore the error so a broker outage never blocks
// ticket issuance or scanning.
type Publisher struct {
	url string
	log *zap.Logger
}

// NewPublisher returns a Publisher for the given broker URL. A nil
// *Publisher is valid and publishes nothing, which keeps call sites
// free of broker-configured checks.
func NewPublisher(url string, log *zap.Logger) *Publisher {
	if url == "" {
		return nil
	}
	return &Publisher{url: url, log: log}
}

// Publish declares the durable gate.events queue and sends one
// persistent JSON message. A fresh connection per publish keeps the
// publisher stateless; event volume at a gate is far below the cost
// of connection pooling.
func (p *Publisher) Publish(ctx context.Context, ev queue.GateEvent) error {
	if p == nil {
		return nil
	}
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("broker dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("broker channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(queue.EventsQueueName, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.EventsQueueName, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String("type", ev.Type), zap.Error(err))
		return err
	}
	return nil
}
