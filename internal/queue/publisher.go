package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NotificationQueue is the durable queue carrying ReservationEvent
// messages.
const NotificationQueue = "reservation.notifications"

// Publisher sends ReservationEvent messages to RabbitMQ.  Each call dials
// its own connection; publishing happens after commit and off the request
// path, so connection reuse is not worth the reconnect bookkeeping.
type Publisher struct {
	url    string
	logger *zap.Logger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// Notify publishes ev as a persistent JSON message.  Errors are logged
// and returned so the caller can choose to ignore them.
func (p *Publisher) Notify(ctx context.Context, ev ReservationEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("rabbitmq: dial failed", zap.Error(err))
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("rabbitmq: channel open failed", zap.Error(err))
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		NotificationQueue, // name
		true,              // durable
		false,             // autoDelete
		false,             // exclusive
		false,             // noWait
		nil,               // args
	); err != nil {
		p.logger.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                // default exchange
		NotificationQueue, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		pub,
	); err != nil {
		p.logger.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("type", ev.Type))
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
