package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/rental-booking/internal/model"
)

// BookingRepo provides access to the bookings table.  All timestamp fields
// are stored in UTC.  Status changes go through UpdateStatusTx, which guards
// on the previous status so a lost lock shows up as ErrConflict rather than
// a silent overwrite.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingSelect = `SELECT id, listing_id, tenant_id, status, start_date, end_date, created_at FROM bookings WHERE id = ?`

func scanBooking(row *sql.Row) (model.Booking, error) {
	var (
		b      model.Booking
		status string
	)
	err := row.Scan(&b.ID, &b.ListingID, &b.TenantID, &status, &b.StartDate, &b.EndDate, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.Status(status)
	b.StartDate, b.EndDate, b.CreatedAt = b.StartDate.UTC(), b.EndDate.UTC(), b.CreatedAt.UTC()
	return b, nil
}

// GetForUpdateTx reads a booking and locks its row.  Callers must already
// hold the lock on the booking's listing.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Booking, error) {
	return scanBooking(tx.QueryRowContext(ctx, bookingSelect+" FOR UPDATE", id))
}

// CreateTx inserts a booking and populates its generated ID.  CreatedAt is
// written by the caller so the service clock stays authoritative.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (listing_id, tenant_id, status, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.ListingID, b.TenantID, string(b.Status), b.StartDate.UTC(), b.EndDate.UTC(), b.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// UpdateStatusTx sets status to `to` only if it is still `from`.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.Status) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// MaxOccupiedEndTx returns the latest end date of the listing's CONFIRMED
// or FINISHED bookings.
func (r *BookingRepo) MaxOccupiedEndTx(ctx context.Context, tx *sql.Tx, listingID uint64) (time.Time, bool, error) {
	var end sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(end_date) FROM bookings WHERE listing_id = ? AND status IN ('CONFIRMED', 'FINISHED')`,
		listingID).Scan(&end)
	if err != nil {
		return time.Time{}, false, err
	}
	if !end.Valid {
		return time.Time{}, false, nil
	}
	return end.Time.UTC(), true, nil
}

// CountConfirmedOverlappingTx counts CONFIRMED bookings on the listing whose
// half-open window intersects [start, end), ignoring excludeID.
func (r *BookingRepo) CountConfirmedOverlappingTx(ctx context.Context, tx *sql.Tx, listingID, excludeID uint64, start, end time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings
WHERE listing_id = ? AND status = 'CONFIRMED' AND id <> ?
  AND start_date < ? AND end_date > ?`
	var n int
	err := tx.QueryRowContext(ctx, q, listingID, excludeID, end.UTC(), start.UTC()).Scan(&n)
	return n, err
}

// ConfirmedEndedBefore lists ids of CONFIRMED bookings that ended before t,
// oldest first.
func (r *BookingRepo) ConfirmedEndedBefore(ctx context.Context, t time.Time) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = 'CONFIRMED' AND end_date < ? ORDER BY end_date, id`, t.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const viewSelect = `SELECT b.id, b.listing_id, l.title, t.username, o.username, b.start_date, b.end_date, b.status
FROM bookings b
JOIN listings l ON l.id = b.listing_id
JOIN users t ON t.id = b.tenant_id
JOIN users o ON o.id = l.landlord_id`

func scanView(sc interface{ Scan(...any) error }) (model.BookingView, error) {
	var (
		v      model.BookingView
		status string
	)
	if err := sc.Scan(&v.ID, &v.ListingID, &v.ListingTitle, &v.TenantUsername, &v.LandlordUsername, &v.StartDate, &v.EndDate, &status); err != nil {
		return model.BookingView{}, err
	}
	v.Status = model.Status(status)
	v.StartDate, v.EndDate = v.StartDate.UTC(), v.EndDate.UTC()
	return v, nil
}

// GetView reads the flattened view of a single booking.
func (r *BookingRepo) GetView(ctx context.Context, id uint64) (model.BookingView, error) {
	v, err := scanView(r.db.QueryRowContext(ctx, viewSelect+" WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.BookingView{}, ErrNotFound
	}
	return v, err
}

// ListByTenant returns one page of the tenant's bookings, newest start date
// first, with the total count across all pages.
func (r *BookingRepo) ListByTenant(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error) {
	return r.listPage(ctx, "t.username = ?", username, limit, offset)
}

// ListByLandlord returns one page of bookings on listings owned by the
// landlord.
func (r *BookingRepo) ListByLandlord(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error) {
	return r.listPage(ctx, "o.username = ?", username, limit, offset)
}

func (r *BookingRepo) listPage(ctx context.Context, where, username string, limit, offset int) ([]model.BookingView, int64, error) {
	var total int64
	countQ := `SELECT COUNT(*) FROM bookings b
JOIN listings l ON l.id = b.listing_id
JOIN users t ON t.id = b.tenant_id
JOIN users o ON o.id = l.landlord_id
WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQ, username).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}
	rows, err := r.db.QueryContext(ctx,
		viewSelect+" WHERE "+where+" ORDER BY b.start_date DESC, b.id DESC LIMIT ? OFFSET ?",
		username, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []model.BookingView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}
