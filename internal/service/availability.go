package service

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/rental-booking/internal/clock"
	"github.com/iliyamo/rental-booking/internal/repository"
)

// DefaultAvailabilityBuffer separates the end of the last confirmed stay
// from the next possible start.
const DefaultAvailabilityBuffer = time.Hour

// Tracker derives a listing's next available instant from its occupied
// bookings.  The latest CONFIRMED or FINISHED end date is the only input;
// pending and cancelled bookings never hold a listing.  A finished stay
// counts so that its buffer survives the daily sweep.
type Tracker struct {
	Buffer time.Duration
	Clock  clock.Clock
}

// Earliest returns the instant a new booking on the listing may start, or
// ok=false when no occupied booking constrains it.
func (t Tracker) Earliest(ctx context.Context, tx repository.Tx, listingID uint64) (time.Time, bool, error) {
	end, ok, err := tx.MaxOccupiedEnd(ctx, listingID)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("max confirmed end for listing %d: %w", listingID, err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return end.Add(t.Buffer), true, nil
}

// Recompute persists the listing's next available date: the latest
// occupied end plus the buffer, or now when that is already past or
// nothing is occupied.
func (t Tracker) Recompute(ctx context.Context, tx repository.Tx, listingID uint64) (time.Time, error) {
	next, ok, err := t.Earliest(ctx, tx, listingID)
	if err != nil {
		return time.Time{}, err
	}
	if now := t.Clock.Now(); !ok || next.Before(now) {
		next = now
	}
	if err := tx.SetNextAvailableDate(ctx, listingID, next); err != nil {
		return time.Time{}, fmt.Errorf("set next available date for listing %d: %w", listingID, err)
	}
	return next, nil
}
