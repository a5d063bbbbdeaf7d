package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/iliyamo/rental-booking/internal/cache"
	"github.com/iliyamo/rental-booking/internal/model"
	"github.com/iliyamo/rental-booking/internal/testsupport"
)

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name       string
		listing    uint64
		user       string
		start, end time.Time
		want       Kind
	}{
		{"unknown listing", 999, "bob", day(2), day(4), KindNotFound},
		{"unknown user", f.listing.ID, "mallory", day(2), day(4), KindNotFound},
		{"own listing", f.listing.ID, "alice", day(2), day(4), KindUnauthorized},
		{"past start", f.listing.ID, "bob", day(-1), day(4), KindInvalidRequest},
		{"empty window", f.listing.ID, "bob", day(3), day(3), KindInvalidRequest},
		{"inverted window", f.listing.ID, "bob", day(4), day(2), KindInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(context.Background(), CreateRequest{
				ListingID: tc.listing, Username: tc.user, StartDate: tc.start, EndDate: tc.end,
			})
			wantKind(t, err, tc.want)
		})
	}
	if n := len(f.store.Bookings()); n != 0 {
		t.Fatalf("rejected requests stored %d bookings", n)
	}
}

func TestCreateBookingOwnListingCheckedBeforeDates(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ListingID: f.listing.ID, Username: "alice", StartDate: day(-3), EndDate: day(-5),
	})
	wantKind(t, err, KindUnauthorized)
}

func TestCreateBookingTodayIsAllowed(t *testing.T) {
	f := newFixture(t)
	// Start of today is before now but not in the past at day granularity.
	v := f.create(t, f.tenant, day(0), day(1))
	if v.Status != model.StatusPending || v.TenantUsername != "bob" || v.LandlordUsername != "alice" {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestCreateBookingNotifiesLandlord(t *testing.T) {
	f := newFixture(t)
	f.create(t, f.tenant, day(2), day(4))

	notes := f.outbox.Notes()
	if len(notes) != 1 || notes[0].To.Username != "alice" {
		t.Fatalf("notes = %+v", notes)
	}
	emails := f.outbox.Emails()
	if len(emails) != 1 || emails[0].To != "alice@example.com" || emails[0].Subject != "New Booking Request" {
		t.Fatalf("emails = %+v", emails)
	}
}

func TestNotificationFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.outbox.Err = errors.New("broker down")

	v := f.create(t, f.tenant, day(2), day(4))
	f.confirm(t, v.ID)
	if got := f.status(t, v.ID); got != model.StatusConfirmed {
		t.Fatalf("status = %s", got)
	}
}

func TestConfirmAndDeclineGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, f.tenant, day(2), day(4))

	_, err := f.svc.ConfirmBooking(ctx, v.ID, "carol")
	wantKind(t, err, KindUnauthorized)
	_, err = f.svc.ConfirmBooking(ctx, v.ID, "bob")
	wantKind(t, err, KindUnauthorized)
	_, err = f.svc.DeclineBooking(ctx, v.ID, "bob")
	wantKind(t, err, KindUnauthorized)
	_, err = f.svc.ConfirmBooking(ctx, 999, "alice")
	wantKind(t, err, KindNotFound)

	if _, err := f.svc.DeclineBooking(ctx, v.ID, "alice"); err != nil {
		t.Fatalf("DeclineBooking: %v", err)
	}
	if got := f.status(t, v.ID); got != model.StatusCancelled {
		t.Fatalf("status after decline = %s", got)
	}

	_, err = f.svc.ConfirmBooking(ctx, v.ID, "alice")
	wantKind(t, err, KindInvalidTransition)
	_, err = f.svc.DeclineBooking(ctx, v.ID, "alice")
	wantKind(t, err, KindInvalidTransition)

	notes := f.outbox.Notes()
	last := notes[len(notes)-1]
	if last.To.Username != "bob" || last.Message != "The landlord has declined your booking for listing 'Sea view loft'" {
		t.Fatalf("decline note = %+v", last)
	}
}

func TestScenarioConfirmedBookingBlocksOverlap(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, f.tenant, day(2), day(5))
	f.confirm(t, v.ID)

	want := day(5).Add(time.Hour)
	if got := f.nextAvailable(t); !got.Equal(want) {
		t.Fatalf("next available = %s, want %s", got, want)
	}

	_, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ListingID: f.listing.ID, Username: "carol", StartDate: day(3), EndDate: day(6),
	})
	de := wantKind(t, err, KindConflict)
	if de.ConflictDate == nil || !de.ConflictDate.Equal(want) {
		t.Fatalf("conflict date = %v, want %s", de.ConflictDate, want)
	}

	// Exactly at the buffered instant is fine.
	f.create(t, f.other, want, day(8))

	notes := f.outbox.Notes()
	if notes[1].To.Username != "bob" || notes[1].Message != "Your booking for listing 'Sea view loft' has been confirmed" {
		t.Fatalf("confirm note = %+v", notes[1])
	}
}

func TestConfirmRejectsOverlapWithConfirmed(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, f.tenant, day(2), day(5))
	b := f.create(t, f.other, day(4), day(7))
	f.confirm(t, a.ID)

	_, err := f.svc.ConfirmBooking(context.Background(), b.ID, "alice")
	wantKind(t, err, KindConflict)
	if got := f.status(t, b.ID); got != model.StatusPending {
		t.Fatalf("status = %s, want PENDING", got)
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, f.tenant, day(2), day(5))
	f.confirm(t, v.ID)

	_, err := f.svc.CancelBooking(ctx, v.ID, "alice")
	wantKind(t, err, KindUnauthorized)

	got, err := f.svc.CancelBooking(ctx, v.ID, "bob")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if next := f.nextAvailable(t); !next.Equal(now) {
		t.Fatalf("next available after cancel = %s, want now", next)
	}
	_, err = f.svc.CancelBooking(ctx, v.ID, "bob")
	wantKind(t, err, KindInvalidTransition)

	last := f.outbox.Notes()[len(f.outbox.Notes())-1]
	if last.To.Username != "alice" {
		t.Fatalf("cancel notified %s, want landlord", last.To.Username)
	}
}

func TestCancelAfterStartRejected(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, f.tenant, day(1), day(3))
	f.clock.Set(day(1).Add(time.Minute))

	_, err := f.svc.CancelBooking(context.Background(), v.ID, "bob")
	wantKind(t, err, KindInvalidRequest)
	if got := f.status(t, v.ID); got != model.StatusPending {
		t.Fatalf("status = %s", got)
	}
}

func TestAvailabilityOnlyDropsWhenControllingBookingLeaves(t *testing.T) {
	f := newFixture(t)
	early := f.create(t, f.tenant, day(2), day(4))
	f.confirm(t, early.ID)
	late := f.create(t, f.other, day(10), day(12))
	f.confirm(t, late.ID)
	want := day(12).Add(time.Hour)

	if _, err := f.svc.CancelBooking(context.Background(), early.ID, "bob"); err != nil {
		t.Fatal(err)
	}
	if got := f.nextAvailable(t); !got.Equal(want) {
		t.Fatalf("cancelling a non-controlling booking moved availability to %s", got)
	}
	if _, err := f.svc.CancelBooking(context.Background(), late.ID, "carol"); err != nil {
		t.Fatal(err)
	}
	if got := f.nextAvailable(t); !got.Before(want) {
		t.Fatalf("availability %s did not drop after cancelling the controlling booking", got)
	}
}

func TestScenarioFinishElapsed(t *testing.T) {
	f := newFixture(t)
	confirmed := f.create(t, f.tenant, day(2), day(5))
	f.confirm(t, confirmed.ID)
	pending := f.create(t, f.other, day(7), day(9))
	cancelled := f.create(t, f.other, day(10), day(11))
	if _, err := f.svc.CancelBooking(context.Background(), cancelled.ID, "carol"); err != nil {
		t.Fatal(err)
	}

	f.clock.Set(day(6))
	n, err := f.svc.FinishElapsed(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("FinishElapsed = %d, %v", n, err)
	}
	if got := f.status(t, confirmed.ID); got != model.StatusFinished {
		t.Errorf("confirmed booking is %s, want FINISHED", got)
	}
	if got := f.status(t, pending.ID); got != model.StatusPending {
		t.Errorf("pending booking is %s", got)
	}
	if got := f.status(t, cancelled.ID); got != model.StatusCancelled {
		t.Errorf("cancelled booking is %s", got)
	}
	if got, want := f.nextAvailable(t), day(5).Add(time.Hour); !got.Equal(want) {
		t.Errorf("next available = %s, want %s unchanged by the sweep", got, want)
	}
	emails := f.outbox.Emails()
	if last := emails[len(emails)-1]; last.To != "bob@example.com" || last.Subject != "Booking Finished" {
		t.Errorf("last email = %+v", last)
	}

	// Nothing left to finish.
	if n, err := f.svc.FinishElapsed(context.Background()); err != nil || n != 0 {
		t.Fatalf("second FinishElapsed = %d, %v", n, err)
	}
}

func TestFinishElapsedIgnoresBookingsStillRunning(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, f.tenant, day(2), day(5))
	f.confirm(t, v.ID)
	f.clock.Set(day(5))

	// end_date == now has not ended yet.
	if n, err := f.svc.FinishElapsed(context.Background()); err != nil || n != 0 {
		t.Fatalf("FinishElapsed = %d, %v", n, err)
	}
}

func TestPageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, tc := range []struct{ page, size int }{{-1, 10}, {0, 0}, {0, 51}, {math.MaxInt/10 + 1, 10}, {math.MaxInt, 2}} {
		_, err := f.svc.ListBookingsForTenant(ctx, "bob", tc.page, tc.size)
		wantKind(t, err, KindInvalidRequest)
		_, err = f.svc.ListBookingsForLandlord(ctx, "alice", tc.page, tc.size)
		wantKind(t, err, KindInvalidRequest)
	}
	if _, err := f.svc.ListBookingsForTenant(ctx, "bob", 0, MaxPageSize); err != nil {
		t.Fatalf("max page size rejected: %v", err)
	}
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t, f.tenant, day(2+i), day(3+i))
	}
	p, err := f.svc.ListBookingsForTenant(context.Background(), "bob", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.TotalElements != 5 || p.TotalPages != 3 || p.Number != 1 || len(p.Content) != 2 {
		t.Fatalf("page = %+v", p)
	}
	// Newest start first: page 1 holds the 3rd and 4th newest.
	if !p.Content[0].StartDate.Equal(day(4)) {
		t.Fatalf("first row starts %s, want %s", p.Content[0].StartDate, day(4))
	}
}

func TestGetBookingAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.create(t, f.tenant, day(2), day(4))

	for _, who := range []string{"bob", "alice"} {
		got, err := f.svc.GetBooking(ctx, v.ID, who)
		if err != nil || got.ID != v.ID {
			t.Fatalf("GetBooking as %s = %+v, %v", who, got, err)
		}
	}
	// The entry is cached now; the check must still apply.
	_, err := f.svc.GetBooking(ctx, v.ID, "carol")
	wantKind(t, err, KindUnauthorized)
	if reads := f.store.Reads("BookingView"); reads != 1 {
		t.Fatalf("BookingView reads = %d, want 1", reads)
	}

	_, err = f.svc.GetBooking(ctx, 999, "bob")
	wantKind(t, err, KindNotFound)
}

func TestServiceWithoutCacheOrNotifiers(t *testing.T) {
	store := testsupport.NewMemStore()
	landlord := store.AddUser("alice")
	tenant := store.AddUser("bob")
	listing := store.AddListing("Cabin", landlord)
	svc := NewBookingService(Deps{Store: store, Namespaces: testNamespaces()})

	v, err := svc.CreateBooking(context.Background(), CreateRequest{
		ListingID: listing.ID, Username: tenant.Username,
		StartDate: time.Now().UTC().AddDate(0, 0, 2), EndDate: time.Now().UTC().AddDate(0, 0, 4),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := svc.ConfirmBooking(context.Background(), v.ID, "alice"); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.ListBookingsForLandlord(context.Background(), "alice", 0, 10); err != nil {
			t.Fatal(err)
		}
	}
	if reads := store.Reads("ListByLandlord"); reads != 2 {
		t.Fatalf("reads = %d, want 2 without a cache", reads)
	}
}

func TestFinishInsideBufferKeepsAvailability(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, f.tenant, day(2), day(5))
	f.confirm(t, v.ID)
	before := f.nextAvailable(t)

	f.clock.Set(day(5).Add(30 * time.Minute))
	if n, err := f.svc.FinishElapsed(context.Background()); err != nil || n != 1 {
		t.Fatalf("FinishElapsed = %d, %v", n, err)
	}
	if got := f.nextAvailable(t); !got.Equal(before) {
		t.Fatalf("next available moved from %s to %s", before, got)
	}

	// The finished stay's buffer still blocks a start ten minutes early.
	_, err := f.svc.CreateBooking(context.Background(), CreateRequest{
		ListingID: f.listing.ID, Username: "carol",
		StartDate: day(5).Add(50 * time.Minute), EndDate: day(7),
	})
	de := wantKind(t, err, KindConflict)
	if de.ConflictDate == nil || !de.ConflictDate.Equal(before) {
		t.Fatalf("conflict date = %v, want %s", de.ConflictDate, before)
	}
	f.create(t, f.other, before, day(7))
}

func TestAvailabilityNeverRecomputedIntoThePast(t *testing.T) {
	f := newFixture(t)
	v := f.create(t, f.tenant, day(2), day(5))
	f.confirm(t, v.ID)
	f.clock.Set(day(8))
	if _, err := f.svc.FinishElapsed(context.Background()); err != nil {
		t.Fatal(err)
	}
	// A later recompute sees only the long finished stay.
	f.create(t, f.other, day(9), day(10))
	if got := f.nextAvailable(t); !got.Equal(day(8)) {
		t.Fatalf("next available = %s, want now (%s)", got, day(8))
	}
}

func TestNewBookingServiceRejectsBadNamespaces(t *testing.T) {
	store := testsupport.NewMemStore()
	layer := cache.New(nil, cache.Options{})
	dup := testNamespaces()
	dup.LandlordBookings.Name = dup.TenantBookings.Name
	noTTL := testNamespaces()
	noTTL.Availability.TTL = 0

	for name, ns := range map[string]Namespaces{"zero": {}, "duplicate": dup, "no ttl": noTTL} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			NewBookingService(Deps{Store: store, Cache: layer, Namespaces: ns})
		})
	}
	// Without a cache the namespaces are unused.
	NewBookingService(Deps{Store: store})
}
