package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains NotificationQueue and appends one line per event to a
// notification log.  Delivering e-mail is left to whatever tails that
// log.
type Consumer struct {
	url     string
	logPath string
	logger  *zap.Logger
}

// NewConsumer returns a consumer writing to logPath.
func NewConsumer(url, logPath string, logger *zap.Logger) *Consumer {
	if logPath == "" {
		logPath = filepath.Join("logs", "notifications.log")
	}
	return &Consumer{url: url, logPath: logPath, logger: logger}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled.  Broker
// failures are retried with exponential backoff capped at 30 seconds.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("notification-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("notification-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("notification-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				c.logger.Error("notification-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	var ev ReservationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if err := WriteLine(f, ev); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// WriteLine renders ev as one human-friendly log line.
func WriteLine(w io.Writer, ev ReservationEvent) error {
	line := fmt.Sprintf("[%s] %s | user_id=%d | exam_id=%d",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.UserID, ev.ExamID)
	if ev.ReservationID != 0 {
		line += fmt.Sprintf(" | reservation_id=%d", ev.ReservationID)
	}
	if ev.ReplacedReservationID != 0 {
		line += fmt.Sprintf(" | replaced_reservation_id=%d", ev.ReplacedReservationID)
	}
	if ev.EventConfigurationID != 0 {
		line += fmt.Sprintf(" | event_configuration_id=%d", ev.EventConfigurationID)
	}
	if ev.MachineID != 0 {
		line += fmt.Sprintf(" | machine_id=%d", ev.MachineID)
	}
	if ev.ExternalRef != "" {
		line += fmt.Sprintf(" | external_ref=%q", ev.ExternalRef)
	}
	if !ev.StartsAt.IsZero() {
		line += fmt.Sprintf(" | window=%s/%s", ev.StartsAt.UTC().Format(time.RFC3339), ev.EndsAt.UTC().Format(time.RFC3339))
	}
	_, err := io.WriteString(w, line+"\n")
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
