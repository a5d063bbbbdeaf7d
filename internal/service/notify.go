package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/rental-booking/internal/metrics"
	"github.com/iliyamo/rental-booking/internal/model"
)

// Notifier delivers an in-app notification to a user.
type Notifier interface {
	Notify(ctx context.Context, recipient model.User, message string) error
}

// Mailer sends a plain-text email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// message is one notification plus its matching email.
type message struct {
	subject string
	body    string
}

func createdMessage(title string) message {
	return message{"New Booking Request", fmt.Sprintf("A new booking request has been made for your listing '%s'", title)}
}

func confirmedMessage(title string) message {
	return message{"Booking Confirmed", fmt.Sprintf("Your booking for listing '%s' has been confirmed", title)}
}

func declinedMessage(title string) message {
	return message{"Booking Declined", fmt.Sprintf("The landlord has declined your booking for listing '%s'", title)}
}

func cancelledMessage(title string) message {
	return message{"Booking Canceled", fmt.Sprintf("The tenant has canceled the booking for listing '%s'", title)}
}

func finishedMessage(title string) message {
	return message{"Booking Finished", fmt.Sprintf("Your booking for listing '%s' has been finished", title)}
}

// deliver sends msg to the recipient on both channels.  It runs after
// commit; failures are logged and counted but never returned.
func (s *BookingService) deliver(ctx context.Context, to model.User, msg message) {
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, to, msg.body); err != nil {
			metrics.NotifyFailures.WithLabelValues("notification").Inc()
			s.log.Warn("notification failed", "user", to.Username, "subject", msg.subject, "err", err)
		}
	}
	if s.mailer != nil && to.Email != "" {
		if err := s.mailer.SendEmail(ctx, to.Email, msg.subject, msg.body); err != nil {
			metrics.NotifyFailures.WithLabelValues("email").Inc()
			s.log.Warn("email failed", "user", to.Username, "subject", msg.subject, "err", err)
		}
	}
}
