package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/rental-booking/internal/cache"
	"github.com/iliyamo/rental-booking/internal/clock"
	"github.com/iliyamo/rental-booking/internal/config"
	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/testsupport"
)

// now is mid-morning so that "start of today" and "now" differ.
var now = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

func day(n int) time.Time { return clock.StartOfDay(now).AddDate(0, 0, n) }

type fixture struct {
	store    *testsupport.MemStore
	outbox   *testsupport.Outbox
	clock    *clock.FakeClock
	mr       *miniredis.Miniredis
	svc      *BookingService
	landlord model.User
	tenant   model.User
	other    model.User
	listing  model.Listing
}

func testNamespaces() Namespaces {
	return NamespacesFrom(config.CacheConfig{
		BookingTTL:             20 * time.Minute,
		TenantBookingsTTL:      20 * time.Minute,
		LandlordBookingsTTL:    20 * time.Minute,
		ListingAvailabilityTTL: 30 * time.Minute,
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		store:  testsupport.NewMemStore(),
		outbox: &testsupport.Outbox{},
		clock:  clock.Fake(now),
		mr:     mr,
	}
	f.landlord = f.store.AddUser("alice")
	f.tenant = f.store.AddUser("bob")
	f.other = f.store.AddUser("carol")
	f.listing = f.store.AddListing("Sea view loft", f.landlord)
	f.svc = NewBookingService(Deps{
		Store:      f.store,
		Cache:      cache.New(rdb, cache.Options{RetryDelay: 10 * time.Millisecond}),
		Namespaces: testNamespaces(),
		Notifier:   f.outbox,
		Mailer:     f.outbox,
		Clock:      f.clock,
		Buffer:     time.Hour,
	})
	return f
}

func (f *fixture) create(t *testing.T, tenant model.User, start, end time.Time) model.BookingView {
	t.Helper()
	v, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ListingID: f.listing.ID,
		Username:  tenant.Username,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		t.Fatalf("CreateBooking(%s, %s..%s): %v", tenant.Username, start.Format("01-02"), end.Format("01-02"), err)
	}
	return v
}

func (f *fixture) confirm(t *testing.T, id uint64) model.BookingView {
	t.Helper()
	v, err := f.svc.ConfirmBooking(context.Background(), id, f.landlord.Username)
	if err != nil {
		t.Fatalf("ConfirmBooking(%d): %v", id, err)
	}
	return v
}

func (f *fixture) status(t *testing.T, id uint64) model.Status {
	t.Helper()
	b, ok := f.store.Booking(id)
	if !ok {
		t.Fatalf("booking %d missing", id)
	}
	return b.Status
}

func (f *fixture) nextAvailable(t *testing.T) time.Time {
	t.Helper()
	l, _ := f.store.Listing(f.listing.ID)
	return l.NextAvailableDate
}

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want %s rejection", err, kind)
	}
	if de.Kind != kind {
		t.Fatalf("kind = %s (%q), want %s", de.Kind, de.Message, kind)
	}
	return de
}
