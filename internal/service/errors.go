package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/rental-booking/internal/repository"
)

// Kind classifies a rejected operation.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidRequest    Kind = "invalid_request"
	KindConflict          Kind = "conflict"
)

// Error is a domain rejection.  ConflictDate is set on availability
// conflicts and names the earliest instant the request could start.
type Error struct {
	Kind         Kind
	Message      string
	ConflictDate *time.Time
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, service.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
)

func rejectf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// notFoundOr maps a repository miss to a NotFound rejection and passes any
// other error through.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: msg}
	}
	return err
}
