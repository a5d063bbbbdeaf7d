package service

import (
	"fmt"
	"strconv"

	"github.com/iliyamo/rental-booking/internal/cache"
	"github.com/iliyamo/rental-booking/internal/config"
)

// Namespaces are the cache namespaces the booking reads populate.
type Namespaces struct {
	Booking          cache.Namespace // one booking view, subject = booking id
	TenantBookings   cache.Namespace // tenant pages, subject = tenant username
	LandlordBookings cache.Namespace // landlord pages, subject = landlord username
	Availability     cache.Namespace // next available date, subject = listing id
}

// NamespacesFrom builds the namespaces with TTLs from c.
func NamespacesFrom(c config.CacheConfig) Namespaces {
	return Namespaces{
		Booking:          cache.Namespace{Name: "booking", TTL: c.BookingTTL},
		TenantBookings:   cache.Namespace{Name: "bookings", TTL: c.TenantBookingsTTL},
		LandlordBookings: cache.Namespace{Name: "bookingsForLandlord", TTL: c.LandlordBookingsTTL},
		Availability:     cache.Namespace{Name: "listingAvailability", TTL: c.ListingAvailabilityTTL},
	}
}

// validate reports a namespace that would collide with another or could
// not be stored.
func (n Namespaces) validate() error {
	seen := make(map[string]bool, 4)
	for _, ns := range []cache.Namespace{n.Booking, n.TenantBookings, n.LandlordBookings, n.Availability} {
		switch {
		case ns.Name == "":
			return fmt.Errorf("cache namespace without a name")
		case ns.TTL <= 0:
			return fmt.Errorf("cache namespace %q has non-positive TTL %s", ns.Name, ns.TTL)
		case seen[ns.Name]:
			return fmt.Errorf("cache namespace %q used twice", ns.Name)
		}
		seen[ns.Name] = true
	}
	return nil
}

func idKey(id uint64) string { return strconv.FormatUint(id, 10) }

// staleAfter lists every cached read a mutation of booking b can change.
// The availability entry is included only when availability was recomputed.
func (n Namespaces) staleAfter(bookingID uint64, tenant, landlord string, listingID uint64, availability bool) []cache.Invalidation {
	invs := []cache.Invalidation{
		cache.Entry(n.Booking, idKey(bookingID)),
		cache.Subject(n.TenantBookings, tenant),
		cache.Subject(n.LandlordBookings, landlord),
	}
	if availability {
		invs = append(invs, cache.Entry(n.Availability, idKey(listingID)))
	}
	return invs
}
