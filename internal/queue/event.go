// Package queue carries booking notifications and emails over RabbitMQ.
package queue

// Queue names.  Both are durable.
const (
	NotificationQueue = "booking.notifications"
	EmailQueue        = "booking.emails"
)

// NotificationEvent is an in-app notification addressed to one user.
type NotificationEvent struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
	SentAt   string `json:"sent_at"`
}

// EmailEvent is a plain-text email waiting for delivery.
type EmailEvent struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}
