package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/rental-booking/internal/model"
)

// ErrClosed is returned by publishes after Close.
var ErrClosed = errors.New("queue: publisher closed")

// Publisher publishes notification and email events to RabbitMQ.  The
// connection is opened lazily and reopened after a failure.
type Publisher struct {
	url string
	log *slog.Logger
	now func() time.Time

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewPublisher returns a Publisher for the broker at url.  No connection is
// made until the first publish.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log.With("component", "publisher"), now: time.Now}
}

// Notify implements the booking service's Notifier.
func (p *Publisher) Notify(ctx context.Context, to model.User, message string) error {
	return p.publish(ctx, NotificationQueue, NotificationEvent{
		UserID:   to.ID,
		Username: to.Username,
		Message:  message,
		SentAt:   p.now().UTC().Format(time.RFC3339),
	})
}

// SendEmail implements the booking service's Mailer.
func (p *Publisher) SendEmail(ctx context.Context, to, subject, body string) error {
	return p.publish(ctx, EmailQueue, EmailEvent{
		To:      to,
		Subject: subject,
		Body:    body,
		SentAt:  p.now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", queue, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    p.now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		p.log.Warn("publish failed, dropping connection", "queue", queue, "err", err)
		p.resetLocked()
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	return nil
}

// channelLocked returns an open channel with both queues declared, dialing
// if needed.  p.mu must be held.
func (p *Publisher) channelLocked() (*amqp.Channel, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueues(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.log.Info("connected to broker")
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.  Later publishes fail with ErrClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.resetLocked()
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	for _, q := range []string{NotificationQueue, EmailQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", q, err)
		}
	}
	return nil
}
