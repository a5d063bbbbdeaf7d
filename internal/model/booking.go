package model

import "time"

// Status is the lifecycle state of a booking.  Values are stored as-is in
// the bookings.status ENUM column.
type Status string

const (
    StatusPending   Status = "PENDING"
    StatusConfirmed Status = "CONFIRMED"
    StatusCancelled Status = "CANCELLED"
    StatusFinished  Status = "FINISHED"
)

// transitions lists every edge of the booking state machine.  CANCELLED
// and FINISHED have no outgoing edges.
var transitions = map[Status][]Status{
    StatusPending:   {StatusConfirmed, StatusCancelled},
    StatusConfirmed: {StatusFinished, StatusCancelled},
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
    switch s {
    case StatusPending, StatusConfirmed, StatusCancelled, StatusFinished:
        return true
    }
    return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
    return s == StatusCancelled || s == StatusFinished
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to Status) bool {
    for _, s := range transitions[from] {
        if s == to {
            return true
        }
    }
    return false
}

// Booking records a tenant's request to occupy a listing for the half-open
// window [StartDate, EndDate).  Rows are never deleted; a booking leaves the
// active set by reaching a terminal status.
//
// Fields:
//  ID        – primary key identifier.
//  ListingID – listing being reserved.
//  TenantID  – user who requested the booking.
//  Status    – lifecycle state (PENDING, CONFIRMED, CANCELLED, FINISHED).
//  StartDate – first instant of occupancy (UTC).
//  EndDate   – instant occupancy ends (UTC, exclusive).
//  CreatedAt – creation timestamp.
type Booking struct {
    ID        uint64    // bookings.id
    ListingID uint64    // bookings.listing_id
    TenantID  uint64    // bookings.tenant_id
    Status    Status    // bookings.status
    StartDate time.Time // bookings.start_date
    EndDate   time.Time // bookings.end_date
    CreatedAt time.Time // bookings.created_at
}

// Overlaps reports whether the booking's window intersects [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
    return b.StartDate.Before(end) && start.Before(b.EndDate)
}
