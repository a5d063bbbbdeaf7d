// Package testsupport provides in-memory stand-ins for the booking core's
// collaborators: a transactional Store with read counters and recording
// notification channels.
package testsupport

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/repository"
)

// MemStore is a repository.Store kept in maps.  Transactions are fully
// serialised and roll back by restoring a snapshot, which makes it a
// stricter model than InnoDB row locks but an equivalent one for callers
// that lock the listing row first.
type MemStore struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]model.User
	listings map[uint64]model.Listing
	bookings map[uint64]model.Booking

	reads map[string]int

	// AfterRead, when set, runs after a non-transactional read has copied
	// its result and released the store, before the result is returned.
	AfterRead func(method string)
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    map[uint64]model.User{},
		listings: map[uint64]model.Listing{},
		bookings: map[uint64]model.Booking{},
		reads:    map[string]int{},
	}
}

func (s *MemStore) id() uint64 {
	s.nextID++
	return s.nextID
}

// AddUser stores a user and returns it with its id.
func (s *MemStore) AddUser(username string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := model.User{ID: s.id(), Username: username, Email: username + "@example.com"}
	s.users[u.ID] = u
	return u
}

// AddListing stores a listing owned by landlord.
func (s *MemStore) AddListing(title string, landlord model.User) model.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := model.Listing{ID: s.id(), Title: title, LandlordID: landlord.ID}
	s.listings[l.ID] = l
	return s.listingLocked(l.ID)
}

// AddBooking stores b as-is, bypassing every rule.  It is meant for
// seeding states the state machine cannot reach on a frozen clock.
func (s *MemStore) AddBooking(b model.Booking) model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	s.bookings[b.ID] = b
	return b
}

// Booking returns the stored booking.
func (s *MemStore) Booking(id uint64) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

// Bookings returns every stored booking ordered by id.
func (s *MemStore) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Listing returns the stored listing.
func (s *MemStore) Listing(id uint64) (model.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.listings[id]
	return s.listingLocked(id), ok
}

// Reads returns how many times a non-transactional read method ran.
func (s *MemStore) Reads(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[method]
}

func (s *MemStore) read(method string) func() {
	s.mu.Lock()
	s.reads[method]++
	return func() {
		s.mu.Unlock()
		if s.AfterRead != nil {
			s.AfterRead(method)
		}
	}
}

func (s *MemStore) listingLocked(id uint64) model.Listing {
	l := s.listings[id]
	if u, ok := s.users[l.LandlordID]; ok {
		l.LandlordUsername = u.Username
		l.LandlordEmail = u.Email
	}
	return l
}

func (s *MemStore) viewLocked(b model.Booking) model.BookingView {
	l := s.listingLocked(b.ListingID)
	return model.BookingView{
		ID:               b.ID,
		ListingID:        b.ListingID,
		ListingTitle:     l.Title,
		TenantUsername:   s.users[b.TenantID].Username,
		LandlordUsername: l.LandlordUsername,
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
		Status:           b.Status,
	}
}

// InTx implements repository.Store.
func (s *MemStore) InTx(ctx context.Context, fn func(repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	listings := make(map[uint64]model.Listing, len(s.listings))
	for k, v := range s.listings {
		listings[k] = v
	}
	bookings := make(map[uint64]model.Booking, len(s.bookings))
	for k, v := range s.bookings {
		bookings[k] = v
	}
	nextID := s.nextID
	if err := fn(memTx{s}); err != nil {
		s.listings, s.bookings, s.nextID = listings, bookings, nextID
		return err
	}
	return nil
}

func (s *MemStore) ListingByID(_ context.Context, id uint64) (model.Listing, error) {
	done := s.read("ListingByID")
	if _, ok := s.listings[id]; !ok {
		done()
		return model.Listing{}, repository.ErrNotFound
	}
	l := s.listingLocked(id)
	done()
	return l, nil
}

func (s *MemStore) BookingView(_ context.Context, id uint64) (model.BookingView, error) {
	done := s.read("BookingView")
	b, ok := s.bookings[id]
	if !ok {
		done()
		return model.BookingView{}, repository.ErrNotFound
	}
	v := s.viewLocked(b)
	done()
	return v, nil
}

func (s *MemStore) ListByTenant(_ context.Context, username string, limit, offset int) ([]model.BookingView, int64, error) {
	done := s.read("ListByTenant")
	rows, total := s.pageLocked(func(v model.BookingView) bool { return v.TenantUsername == username }, limit, offset)
	done()
	return rows, total, nil
}

func (s *MemStore) ListByLandlord(_ context.Context, username string, limit, offset int) ([]model.BookingView, int64, error) {
	done := s.read("ListByLandlord")
	rows, total := s.pageLocked(func(v model.BookingView) bool { return v.LandlordUsername == username }, limit, offset)
	done()
	return rows, total, nil
}

// pageLocked orders like the MySQL store: newest start first, then id.
func (s *MemStore) pageLocked(match func(model.BookingView) bool, limit, offset int) ([]model.BookingView, int64) {
	var all []model.BookingView
	for _, b := range s.bookings {
		if v := s.viewLocked(b); match(v) {
			all = append(all, v)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartDate.Equal(all[j].StartDate) {
			return all[i].StartDate.After(all[j].StartDate)
		}
		return all[i].ID > all[j].ID
	})
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]model.BookingView(nil), all[offset:end]...), total
}

func (s *MemStore) ConfirmedEndedBefore(_ context.Context, t time.Time) ([]uint64, error) {
	done := s.read("ConfirmedEndedBefore")
	var ids []uint64
	for _, b := range s.bookings {
		if b.Status == model.StatusConfirmed && b.EndDate.Before(t) {
			ids = append(ids, b.ID)
		}
	}
	done()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// memTx runs with MemStore.mu held.
type memTx struct{ s *MemStore }

func (t memTx) ListingForUpdate(_ context.Context, id uint64) (model.Listing, error) {
	if _, ok := t.s.listings[id]; !ok {
		return model.Listing{}, repository.ErrNotFound
	}
	return t.s.listingLocked(id), nil
}

func (t memTx) UserByUsername(_ context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	for _, u := range t.s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (t memTx) UserByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (t memTx) BookingForUpdate(_ context.Context, id uint64) (model.Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (t memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	if !b.StartDate.Before(b.EndDate) {
		return errors.New("check constraint chk_bookings_window violated")
	}
	b.ID = t.s.id()
	t.s.bookings[b.ID] = *b
	return nil
}

func (t memTx) UpdateBookingStatus(_ context.Context, id uint64, from, to model.Status) error {
	b, ok := t.s.bookings[id]
	if !ok || b.Status != from {
		return repository.ErrConflict
	}
	b.Status = to
	t.s.bookings[id] = b
	return nil
}

func (t memTx) MaxOccupiedEnd(_ context.Context, listingID uint64) (time.Time, bool, error) {
	var (
		latest time.Time
		ok     bool
	)
	for _, b := range t.s.bookings {
		if b.ListingID == listingID && occupies(b.Status) && (!ok || b.EndDate.After(latest)) {
			latest, ok = b.EndDate, true
		}
	}
	return latest, ok, nil
}

func (t memTx) CountConfirmedOverlapping(_ context.Context, listingID, excludeID uint64, start, end time.Time) (int, error) {
	n := 0
	for _, b := range t.s.bookings {
		if b.ListingID == listingID && b.ID != excludeID && b.Status == model.StatusConfirmed && b.Overlaps(start, end) {
			n++
		}
	}
	return n, nil
}

func (t memTx) SetNextAvailableDate(_ context.Context, listingID uint64, at time.Time) error {
	l, ok := t.s.listings[listingID]
	if !ok {
		return repository.ErrNotFound
	}
	l.NextAvailableDate = at.UTC()
	t.s.listings[listingID] = l
	return nil
}

var (
	_ repository.Store = (*MemStore)(nil)
	_ repository.Tx    = memTx{}
)

func occupies(s model.Status) bool {
	return s == model.StatusConfirmed || s == model.StatusFinished
}
