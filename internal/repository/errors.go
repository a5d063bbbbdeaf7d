// Package repository holds the MySQL access code for bookings, listings and
// users.  Sentinel errors defined here let the service layer tell "row is
// missing" apart from infrastructure failures.
package repository

import "errors"

// ErrNotFound is returned when a lookup by id or username matches no row.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded update matches no row because the
// row's state changed since it was read.  The service layer holds the row
// lock when it updates, so seeing this indicates a missing lock.
var ErrConflict = errors.New("conflict")
