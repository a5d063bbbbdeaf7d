package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Sink appends delivered events to per-queue log files under Dir.
type Sink struct {
	Dir string
}

// handle decodes one delivery from queue and appends it to the matching file.
func (s Sink) handle(queue string, body []byte) error {
	var line, file string
	switch queue {
	case NotificationQueue:
		var ev NotificationEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line, file = formatNotification(ev), "notifications.log"
	case EmailQueue:
		var ev EmailEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
		line, file = formatEmail(ev), "emails.log"
	default:
		return fmt.Errorf("unknown queue %q", queue)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(s.Dir, file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatNotification(ev NotificationEvent) string {
	return fmt.Sprintf("[%s] Notification | user_id=%d | username=%q | message=%q\n",
		ev.SentAt, ev.UserID, ev.Username, ev.Message)
}

func formatEmail(ev EmailEvent) string {
	return fmt.Sprintf("[%s] Email | to=%q | subject=%q | body=%q\n",
		ev.SentAt, ev.To, ev.Subject, ev.Body)
}

// StartConsumer consumes both booking queues and writes each event to sink.
// It reconnects with exponential backoff and returns when ctx is done.
func StartConsumer(ctx context.Context, url string, sink Sink, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "consumer")

	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("dial broker failed", "err", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, sink, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("consume loop ended, reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink Sink, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", "err", err)
	}
	if err := declareQueues(ch); err != nil {
		return err
	}

	notes, err := ch.Consume(NotificationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", NotificationQueue, err)
	}
	emails, err := ch.Consume(EmailQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", EmailQueue, err)
	}

	for {
		var d amqp.Delivery
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-notes:
		case d, ok = <-emails:
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := sink.handle(d.RoutingKey, d.Body); err != nil {
			log.Error("handle message failed", "queue", d.RoutingKey, "message_id", d.MessageId, "err", err)
			// Do not requeue; a poison message would loop forever.
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
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
