package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/rental-booking/internal/model"
)

// MySQLStore implements Store over the three repositories.
type MySQLStore struct {
	db       *sql.DB
	Bookings *BookingRepo
	Listings *ListingRepo
	Users    *UserRepo
}

// NewMySQLStore wires the repositories to db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:       db,
		Bookings: NewBookingRepo(db),
		Listings: NewListingRepo(db),
		Users:    NewUserRepo(db),
	}
}

// InTx begins a transaction, runs fn and commits.  Any error from fn, or a
// panic, rolls the transaction back.
func (s *MySQLStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) ListingByID(ctx context.Context, id uint64) (model.Listing, error) {
	return s.Listings.GetByID(ctx, id)
}

func (s *MySQLStore) BookingView(ctx context.Context, id uint64) (model.BookingView, error) {
	return s.Bookings.GetView(ctx, id)
}

func (s *MySQLStore) ListByTenant(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error) {
	return s.Bookings.ListByTenant(ctx, username, limit, offset)
}

func (s *MySQLStore) ListByLandlord(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error) {
	return s.Bookings.ListByLandlord(ctx, username, limit, offset)
}

func (s *MySQLStore) ConfirmedEndedBefore(ctx context.Context, t time.Time) ([]uint64, error) {
	return s.Bookings.ConfirmedEndedBefore(ctx, t)
}

// mysqlTx binds the repositories' ...Tx methods to one *sql.Tx.
type mysqlTx struct {
	s  *MySQLStore
	tx *sql.Tx
}

func (t *mysqlTx) ListingForUpdate(ctx context.Context, id uint64) (model.Listing, error) {
	return t.s.Listings.GetForUpdateTx(ctx, t.tx, id)
}

func (t *mysqlTx) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return t.s.Users.GetByUsernameTx(ctx, t.tx, username)
}

func (t *mysqlTx) UserByID(ctx context.Context, id uint64) (model.User, error) {
	return t.s.Users.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) BookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return t.s.Bookings.GetForUpdateTx(ctx, t.tx, id)
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	return t.s.Bookings.CreateTx(ctx, t.tx, b)
}

func (t *mysqlTx) UpdateBookingStatus(ctx context.Context, id uint64, from, to model.Status) error {
	return t.s.Bookings.UpdateStatusTx(ctx, t.tx, id, from, to)
}

func (t *mysqlTx) MaxOccupiedEnd(ctx context.Context, listingID uint64) (time.Time, bool, error) {
	return t.s.Bookings.MaxOccupiedEndTx(ctx, t.tx, listingID)
}

func (t *mysqlTx) CountConfirmedOverlapping(ctx context.Context, listingID, excludeID uint64, start, end time.Time) (int, error) {
	return t.s.Bookings.CountConfirmedOverlappingTx(ctx, t.tx, listingID, excludeID, start, end)
}

func (t *mysqlTx) SetNextAvailableDate(ctx context.Context, listingID uint64, at time.Time) error {
	return t.s.Listings.SetNextAvailableDateTx(ctx, t.tx, listingID, at)
}

var (
	_ Store = (*MySQLStore)(nil)
	_ Tx    = (*mysqlTx)(nil)
)
