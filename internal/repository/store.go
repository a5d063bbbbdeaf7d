package repository

import (
	"context"
	"time"

	"github.com/iliyamo/rental-booking/internal/model"
)

// Store is the system of record the booking core runs against.  Reads
// outside a transaction go through the Store directly; every mutation runs
// inside InTx.
type Store interface {
	// InTx runs fn in a transaction.  It commits when fn returns nil and
	// rolls back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error

	ListingByID(ctx context.Context, id uint64) (model.Listing, error)
	BookingView(ctx context.Context, id uint64) (model.BookingView, error)
	ListByTenant(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error)
	ListByLandlord(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error)
	// ConfirmedEndedBefore returns ids of CONFIRMED bookings whose end date
	// is strictly before t.
	ConfirmedEndedBefore(ctx context.Context, t time.Time) ([]uint64, error)
}

// Tx is the transactional view of the Store.  Lock order is always the
// listing row first, then the booking row.
type Tx interface {
	ListingForUpdate(ctx context.Context, id uint64) (model.Listing, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	UserByID(ctx context.Context, id uint64) (model.User, error)

	BookingForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	// UpdateBookingStatus moves a booking from -> to.  It returns ErrConflict
	// if the stored status is no longer from.
	UpdateBookingStatus(ctx context.Context, id uint64, from, to model.Status) error

	// MaxOccupiedEnd returns the latest end date among the listing's
	// CONFIRMED and FINISHED bookings.  ok is false when there are none.
	MaxOccupiedEnd(ctx context.Context, listingID uint64) (end time.Time, ok bool, err error)
	// CountConfirmedOverlapping counts CONFIRMED bookings on the listing,
	// other than excludeID, whose window intersects [start, end).
	CountConfirmedOverlapping(ctx context.Context, listingID, excludeID uint64, start, end time.Time) (int, error)
	SetNextAvailableDate(ctx context.Context, listingID uint64, t time.Time) error
}
