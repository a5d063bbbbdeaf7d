package testsupport

import (
	"context"
	"sync"

	"github.com/iliyamo/rental-booking/internal/model"
)

// Note is a recorded notification.
type Note struct {
	To      model.User
	Message string
}

// Email is a recorded email.
type Email struct {
	To, Subject, Body string
}

// Outbox records notifications and emails.  Set Err to make every call
// fail after recording.
type Outbox struct {
	mu     sync.Mutex
	notes  []Note
	emails []Email
	Err    error
}

func (o *Outbox) Notify(_ context.Context, to model.User, message string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notes = append(o.notes, Note{To: to, Message: message})
	return o.Err
}

func (o *Outbox) SendEmail(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.emails = append(o.emails, Email{To: to, Subject: subject, Body: body})
	return o.Err
}

// Notes returns a copy of the recorded notifications.
func (o *Outbox) Notes() []Note {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Note(nil), o.notes...)
}

// Emails returns a copy of the recorded emails.
func (o *Outbox) Emails() []Email {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Email(nil), o.emails...)
}
