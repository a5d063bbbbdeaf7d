// Package service implements the booking lifecycle: creation, the
// landlord and tenant transitions, the elapsed-stay sweep and the cached
// read paths.  Every mutation runs in one transaction that holds the
// listing row lock, recomputes availability when confirmed occupancy
// changed, and evicts the affected cache entries after commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/rental-booking/internal/cache"
	"github.com/iliyamo/rental-booking/internal/clock"
	"github.com/iliyamo/rental-booking/internal/metrics"
	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/repository"
)

// MaxPageSize caps the size of a listing page.
const MaxPageSize = 50

var tracer = otel.Tracer("github.com/iliyamo/rental-booking/internal/service")

// Deps are the collaborators of a BookingService.  Cache, Notifier and
// Mailer may be nil.
type Deps struct {
	Store      repository.Store
	Cache      *cache.Layer
	Namespaces Namespaces
	Notifier   Notifier
	Mailer     Mailer
	Clock      clock.Clock
	Buffer     time.Duration
	Logger     *slog.Logger
}

// BookingService is the booking state machine.
type BookingService struct {
	store    repository.Store
	cache    *cache.Layer
	ns       Namespaces
	tracker  Tracker
	notifier Notifier
	mailer   Mailer
	clock    clock.Clock
	locks    *listingLocks
	log      *slog.Logger
}

// NewBookingService wires a BookingService.  A zero Buffer falls back to
// DefaultAvailabilityBuffer.
func NewBookingService(d Deps) *BookingService {
	if d.Store == nil {
		panic("nil store passed to NewBookingService")
	}
	if d.Cache != nil {
		if err := d.Namespaces.validate(); err != nil {
			panic("NewBookingService: " + err.Error())
		}
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Buffer == 0 {
		d.Buffer = DefaultAvailabilityBuffer
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &BookingService{
		store:    d.Store,
		cache:    d.Cache,
		ns:       d.Namespaces,
		tracker:  Tracker{Buffer: d.Buffer, Clock: d.Clock},
		notifier: d.Notifier,
		mailer:   d.Mailer,
		clock:    d.Clock,
		locks:    newListingLocks(),
		log:      d.Logger.With("component", "booking"),
	}
}

// CreateRequest asks for a booking of a listing over [StartDate, EndDate).
type CreateRequest struct {
	ListingID uint64
	Username  string
	StartDate time.Time
	EndDate   time.Time
}

// CreateBooking validates and stores a PENDING booking and notifies the
// landlord.  Checks run in a fixed order: listing, tenant, ownership, past
// start, window order, availability.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateRequest) (view model.BookingView, err error) {
	ctx, span := tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.Int64("listing.id", int64(req.ListingID)),
	))
	defer func() { s.end(span, "create", err) }()

	start, end := req.StartDate.UTC(), req.EndDate.UTC()
	unlock := s.locks.lock(req.ListingID)

	var (
		b       model.Booking
		listing model.Listing
		tenant  model.User
	)
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if listing, err = tx.ListingForUpdate(ctx, req.ListingID); err != nil {
			return notFoundOr(err, "Listing not found")
		}
		if tenant, err = tx.UserByUsername(ctx, req.Username); err != nil {
			return notFoundOr(err, "User not found")
		}
		if tenant.ID == listing.LandlordID {
			return rejectf(KindUnauthorized, "You cannot book your own listing")
		}
		now := s.clock.Now()
		if start.Before(clock.StartOfDay(now)) {
			return rejectf(KindInvalidRequest, "The booking start date cannot be in the past")
		}
		if !start.Before(end) {
			return rejectf(KindInvalidRequest, "The booking start date must be before the end date")
		}
		earliest, ok, err := s.tracker.Earliest(ctx, tx, listing.ID)
		if err != nil {
			return err
		}
		if ok && start.Before(earliest) {
			e := rejectf(KindConflict, "The booking start date is only available after: %s", earliest.Format(time.RFC3339))
			e.ConflictDate = &earliest
			return e
		}

		b = model.Booking{
			ListingID: listing.ID,
			TenantID:  tenant.ID,
			Status:    model.StatusPending,
			StartDate: start,
			EndDate:   end,
			CreatedAt: now,
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		_, err = s.tracker.Recompute(ctx, tx, listing.ID)
		return err
	})
	// Eviction and delivery run outside the listing lock.
	unlock()
	if err != nil {
		return model.BookingView{}, err
	}

	s.cache.Invalidate(ctx, s.ns.staleAfter(b.ID, tenant.Username, listing.LandlordUsername, listing.ID, true)...)
	metrics.Transitions.WithLabelValues(string(model.StatusPending)).Inc()
	s.log.Info("booking created", "booking_id", b.ID, "listing_id", listing.ID, "tenant", tenant.Username)
	s.deliver(ctx, landlordOf(listing), createdMessage(listing.Title))
	return viewOf(b, listing, tenant), nil
}

// ConfirmBooking moves a PENDING booking to CONFIRMED.  Only the listing's
// landlord may confirm, and not while another confirmed booking overlaps.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error) {
	m, err := s.mutate(ctx, "confirm", bookingID, func(ctx context.Context, tx repository.Tx, b *model.Booking, l model.Listing) (bool, error) {
		if err := s.requireLandlord(ctx, tx, l, username, "confirm"); err != nil {
			return false, err
		}
		if b.Status != model.StatusPending {
			return false, rejectf(KindInvalidTransition, "Only pending bookings can be confirmed, booking is %s", b.Status)
		}
		n, err := tx.CountConfirmedOverlapping(ctx, l.ID, b.ID, b.StartDate, b.EndDate)
		if err != nil {
			return false, fmt.Errorf("count overlapping bookings: %w", err)
		}
		if n > 0 {
			return false, rejectf(KindConflict, "The booking overlaps a confirmed booking on this listing")
		}
		return true, s.setStatus(ctx, tx, b, model.StatusConfirmed)
	})
	if err != nil {
		return model.BookingView{}, err
	}
	s.deliver(ctx, m.tenant, confirmedMessage(m.listing.Title))
	return m.view(), nil
}

// DeclineBooking moves a PENDING booking to CANCELLED on the landlord's
// behalf.  Availability is unaffected.
func (s *BookingService) DeclineBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error) {
	m, err := s.mutate(ctx, "decline", bookingID, func(ctx context.Context, tx repository.Tx, b *model.Booking, l model.Listing) (bool, error) {
		if err := s.requireLandlord(ctx, tx, l, username, "decline"); err != nil {
			return false, err
		}
		if b.Status != model.StatusPending {
			return false, rejectf(KindInvalidTransition, "Only pending bookings can be declined, booking is %s", b.Status)
		}
		return false, s.setStatus(ctx, tx, b, model.StatusCancelled)
	})
	if err != nil {
		return model.BookingView{}, err
	}
	s.deliver(ctx, m.tenant, declinedMessage(m.listing.Title))
	return m.view(), nil
}

// CancelBooking lets the tenant withdraw a PENDING or CONFIRMED booking
// that has not started yet.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uint64, username string) (model.BookingView, error) {
	m, err := s.mutate(ctx, "cancel", bookingID, func(ctx context.Context, tx repository.Tx, b *model.Booking, l model.Listing) (bool, error) {
		actor, err := tx.UserByUsername(ctx, username)
		if err != nil {
			return false, notFoundOr(err, "User not found")
		}
		if actor.ID != b.TenantID {
			return false, rejectf(KindUnauthorized, "You are not authorized to cancel this booking")
		}
		if b.Status.Terminal() {
			return false, rejectf(KindInvalidTransition, "Booking is already %s", b.Status)
		}
		if b.StartDate.Before(s.clock.Now()) {
			return false, rejectf(KindInvalidRequest, "A booking cannot be canceled after it has started")
		}
		return true, s.setStatus(ctx, tx, b, model.StatusCancelled)
	})
	if err != nil {
		return model.BookingView{}, err
	}
	s.deliver(ctx, landlordOf(m.listing), cancelledMessage(m.listing.Title))
	return m.view(), nil
}

// FinishElapsed moves every CONFIRMED booking that ended before now to
// FINISHED, one transaction each.  The listing's next available date is not
// touched.  A booking whose state changed since it
// was listed is skipped.  It returns how many bookings were finished and
// the joined errors of the ones that failed.
func (s *BookingService) FinishElapsed(ctx context.Context) (finished int, err error) {
	ctx, span := tracer.Start(ctx, "booking.finish_elapsed")
	defer func() { s.end(span, "finish", err) }()

	now := s.clock.Now()
	ids, err := s.store.ConfirmedEndedBefore(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list elapsed bookings: %w", err)
	}
	var errs []error
	for _, id := range ids {
		m, err := s.mutate(ctx, "finish", id, func(ctx context.Context, tx repository.Tx, b *model.Booking, _ model.Listing) (bool, error) {
			if b.Status != model.StatusConfirmed || !b.EndDate.Before(now) {
				return false, errSkip
			}
			// A finished stay still holds the listing until its buffer
			// passes, so availability is left as it is.
			return false, s.setStatus(ctx, tx, b, model.StatusFinished)
		})
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			s.log.Error("finish booking failed", "booking_id", id, "err", err)
			errs = append(errs, fmt.Errorf("booking %d: %w", id, err))
			continue
		}
		finished++
		s.deliver(ctx, m.tenant, finishedMessage(m.listing.Title))
	}
	span.SetAttributes(attribute.Int("bookings.finished", finished))
	return finished, errors.Join(errs...)
}

// errSkip aborts a finish transaction without counting as a failure.
var errSkip = errors.New("skip")

// mutation is the committed outcome of mutate.
type mutation struct {
	booking model.Booking
	listing model.Listing
	tenant  model.User
}

func (m mutation) view() model.BookingView { return viewOf(m.booking, m.listing, m.tenant) }

// mutateFunc validates and applies one transition.  It reports whether
// confirmed occupancy changed so that availability must be recomputed.
type mutateFunc func(ctx context.Context, tx repository.Tx, b *model.Booking, l model.Listing) (recompute bool, err error)

// mutate runs fn against the locked listing and booking rows, then evicts
// the cache after commit.
func (s *BookingService) mutate(ctx context.Context, op string, bookingID uint64, fn mutateFunc) (m mutation, err error) {
	ctx, span := tracer.Start(ctx, "booking."+op, trace.WithAttributes(
		attribute.Int64("booking.id", int64(bookingID)),
	))
	defer func() {
		if !errors.Is(err, errSkip) {
			s.end(span, op, err)
		} else {
			span.End()
		}
	}()

	// The listing id is immutable, so an unlocked read is enough to pick
	// the mutex; the rows are locked again inside the transaction.
	pre, err := s.store.BookingView(ctx, bookingID)
	if err != nil {
		return mutation{}, notFoundOr(err, "Booking not found")
	}
	unlock := s.locks.lock(pre.ListingID)
	defer unlock()

	var recompute bool
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		if m.listing, err = tx.ListingForUpdate(ctx, pre.ListingID); err != nil {
			return notFoundOr(err, "Listing not found")
		}
		if m.booking, err = tx.BookingForUpdate(ctx, bookingID); err != nil {
			return notFoundOr(err, "Booking not found")
		}
		if m.tenant, err = tx.UserByID(ctx, m.booking.TenantID); err != nil {
			return notFoundOr(err, "User not found")
		}
		if recompute, err = fn(ctx, tx, &m.booking, m.listing); err != nil {
			return err
		}
		if recompute {
			_, err = s.tracker.Recompute(ctx, tx, m.listing.ID)
		}
		return err
	})
	if err != nil {
		return mutation{}, err
	}

	s.cache.Invalidate(ctx, s.ns.staleAfter(bookingID, m.tenant.Username, m.listing.LandlordUsername, m.listing.ID, recompute)...)
	metrics.Transitions.WithLabelValues(string(m.booking.Status)).Inc()
	s.log.Info("booking "+op, "booking_id", bookingID, "listing_id", m.listing.ID, "status", m.booking.Status)
	return m, nil
}

func (s *BookingService) requireLandlord(ctx context.Context, tx repository.Tx, l model.Listing, username, action string) error {
	actor, err := tx.UserByUsername(ctx, username)
	if err != nil {
		return notFoundOr(err, "User not found")
	}
	if actor.ID != l.LandlordID {
		return rejectf(KindUnauthorized, "You are not authorized to %s this booking", action)
	}
	return nil
}

func (s *BookingService) setStatus(ctx context.Context, tx repository.Tx, b *model.Booking, to model.Status) error {
	if !model.CanTransition(b.Status, to) {
		return rejectf(KindInvalidTransition, "Booking cannot move from %s to %s", b.Status, to)
	}
	if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, to); err != nil {
		return fmt.Errorf("update booking %d status: %w", b.ID, err)
	}
	b.Status = to
	return nil
}

// GetBooking returns one booking.  Only its tenant and the listing's
// landlord may read it; the check runs on cached reads too.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uint64, username string) (view model.BookingView, err error) {
	ctx, span := tracer.Start(ctx, "booking.get", trace.WithAttributes(
		attribute.Int64("booking.id", int64(bookingID)),
	))
	defer func() { s.end(span, "get", err) }()

	view, err = cache.Fetch(ctx, s.cache, cache.NewKey(s.ns.Booking, idKey(bookingID)),
		func(ctx context.Context) (model.BookingView, error) {
			return s.store.BookingView(ctx, bookingID)
		}, nil)
	if err != nil {
		return model.BookingView{}, notFoundOr(err, "Booking not found")
	}
	if view.TenantUsername != username && view.LandlordUsername != username {
		return model.BookingView{}, rejectf(KindUnauthorized, "You are not authorized to view this booking")
	}
	return view, nil
}

// ListBookingsForTenant returns one page of the user's own bookings.
func (s *BookingService) ListBookingsForTenant(ctx context.Context, username string, page, size int) (model.Page[model.BookingView], error) {
	return s.listPage(ctx, "list_tenant", s.ns.TenantBookings, username, page, size, s.store.ListByTenant)
}

// ListBookingsForLandlord returns one page of bookings on the user's
// listings.
func (s *BookingService) ListBookingsForLandlord(ctx context.Context, username string, page, size int) (model.Page[model.BookingView], error) {
	return s.listPage(ctx, "list_landlord", s.ns.LandlordBookings, username, page, size, s.store.ListByLandlord)
}

type pageLoader func(ctx context.Context, username string, limit, offset int) ([]model.BookingView, int64, error)

func (s *BookingService) listPage(ctx context.Context, op string, ns cache.Namespace, username string, page, size int, load pageLoader) (p model.Page[model.BookingView], err error) {
	ctx, span := tracer.Start(ctx, "booking."+op, trace.WithAttributes(
		attribute.Int("page.number", page),
		attribute.Int("page.size", size),
	))
	defer func() { s.end(span, op, err) }()

	if err := ValidatePage(page, size); err != nil {
		return model.Page[model.BookingView]{}, err
	}
	key := cache.NewKey(ns, username, strconv.Itoa(page), strconv.Itoa(size))
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (model.Page[model.BookingView], error) {
		rows, total, err := load(ctx, username, size, page*size)
		if err != nil {
			return model.Page[model.BookingView]{}, err
		}
		return model.NewPage(rows, total, page, size), nil
	}, model.Page[model.BookingView].Empty)
}

// ValidatePage checks zero-based page numbers and sizes up to MaxPageSize.
func ValidatePage(page, size int) error {
	switch {
	case page < 0:
		return rejectf(KindInvalidRequest, "Page number must not be negative")
	case size < 1:
		return rejectf(KindInvalidRequest, "Page size must be positive")
	case size > MaxPageSize:
		return rejectf(KindInvalidRequest, "Maximum page size is %d", MaxPageSize)
	case page > math.MaxInt/size:
		// page*size is the row offset and must not overflow.
		return rejectf(KindInvalidRequest, "Page number is too large")
	}
	return nil
}

// GetAvailability returns the listing's next available date.
func (s *BookingService) GetAvailability(ctx context.Context, listingID uint64) (a model.Availability, err error) {
	ctx, span := tracer.Start(ctx, "booking.availability", trace.WithAttributes(
		attribute.Int64("listing.id", int64(listingID)),
	))
	defer func() { s.end(span, "availability", err) }()

	a, err = cache.Fetch(ctx, s.cache, cache.NewKey(s.ns.Availability, idKey(listingID)),
		func(ctx context.Context) (model.Availability, error) {
			l, err := s.store.ListingByID(ctx, listingID)
			if err != nil {
				return model.Availability{}, err
			}
			return model.Availability{ListingID: l.ID, NextAvailableDate: l.NextAvailableDate}, nil
		}, nil)
	if err != nil {
		return model.Availability{}, notFoundOr(err, "Listing not found")
	}
	return a, nil
}

// end closes span and records a rejection metric for domain errors.
func (s *BookingService) end(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	var de *Error
	if errors.As(err, &de) {
		metrics.Rejections.WithLabelValues(op, string(de.Kind)).Inc()
		span.SetAttributes(attribute.String("booking.rejection", string(de.Kind)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func landlordOf(l model.Listing) model.User {
	return model.User{ID: l.LandlordID, Username: l.LandlordUsername, Email: l.LandlordEmail}
}

func viewOf(b model.Booking, l model.Listing, tenant model.User) model.BookingView {
	return model.BookingView{
		ID:               b.ID,
		ListingID:        l.ID,
		ListingTitle:     l.Title,
		TenantUsername:   tenant.Username,
		LandlordUsername: l.LandlordUsername,
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
		Status:           b.Status,
	}
}
