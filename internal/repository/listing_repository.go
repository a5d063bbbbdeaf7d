package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/rental-booking/internal/model"
)

// ListingRepo reads listings joined with their landlord and maintains the
// derived next_available_date column.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

const listingSelect = `SELECT l.id, l.title, l.landlord_id, u.username, u.email, l.next_available_date
FROM listings l JOIN users u ON u.id = l.landlord_id
WHERE l.id = ?`

func scanListing(row *sql.Row) (model.Listing, error) {
	var l model.Listing
	err := row.Scan(&l.ID, &l.Title, &l.LandlordID, &l.LandlordUsername, &l.LandlordEmail, &l.NextAvailableDate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Listing{}, ErrNotFound
	}
	if err != nil {
		return model.Listing{}, err
	}
	l.NextAvailableDate = l.NextAvailableDate.UTC()
	return l, nil
}

// GetByID fetches a listing without locking.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (model.Listing, error) {
	return scanListing(r.db.QueryRowContext(ctx, listingSelect, id))
}

// GetForUpdateTx fetches a listing and takes a row lock on it for the rest
// of the transaction.  Only the listings row is locked, not the landlord.
func (r *ListingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Listing, error) {
	return scanListing(tx.QueryRowContext(ctx, listingSelect+" FOR UPDATE OF l", id))
}

// SetNextAvailableDateTx persists the derived availability instant.  The
// caller holds the listing lock, so the row is known to exist.
func (r *ListingRepo) SetNextAvailableDateTx(ctx context.Context, tx *sql.Tx, id uint64, t time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE listings SET next_available_date = ? WHERE id = ?`, t.UTC(), id)
	return err
}
