package config

import (
    "fmt"
    "time"

    "github.com/kelseyhightower/envconfig"
)

// CacheConfig defines settings for the booking read cache.  When Enabled is
// false or no Redis client is configured, every read goes to the database.
// Each namespace has its own TTL.  ScanCount bounds the batch size of
// pattern eviction and EvictRetryDelay is how long a failed eviction waits
// before its single retry.
type CacheConfig struct {
    Enabled                bool          `envconfig:"ENABLED" default:"true"`                 // master switch for the read cache
    BookingTTL             time.Duration `envconfig:"BOOKING_TTL" default:"20m"`              // single booking views
    TenantBookingsTTL      time.Duration `envconfig:"TENANT_BOOKINGS_TTL" default:"20m"`      // "my bookings" pages
    LandlordBookingsTTL    time.Duration `envconfig:"LANDLORD_BOOKINGS_TTL" default:"20m"`    // landlord pages
    ListingAvailabilityTTL time.Duration `envconfig:"AVAILABILITY_TTL" default:"30m"`         // next available date per listing
    ScanCount              int64         `envconfig:"SCAN_COUNT" default:"1000"`              // SCAN COUNT hint for prefix eviction
    EvictRetryDelay        time.Duration `envconfig:"EVICT_RETRY_DELAY" default:"2s"`         // wait before retrying a failed eviction
}

// LoadCacheConfig reads CACHE_* variables.  Defaults are used when
// variables are not set.
func LoadCacheConfig() (CacheConfig, error) {
    var c CacheConfig
    // The "cache" prefix maps BookingTTL to CACHE_BOOKING_TTL and so on.
    if err := envconfig.Process("cache", &c); err != nil {
        return CacheConfig{}, err
    }
    // A zero TTL would make Redis reject every SET, so each namespace must
    // keep entries for some positive duration.
    for name, ttl := range map[string]time.Duration{
        "CACHE_BOOKING_TTL":           c.BookingTTL,
        "CACHE_TENANT_BOOKINGS_TTL":   c.TenantBookingsTTL,
        "CACHE_LANDLORD_BOOKINGS_TTL": c.LandlordBookingsTTL,
        "CACHE_AVAILABILITY_TTL":      c.ListingAvailabilityTTL,
    } {
        if ttl <= 0 {
            return CacheConfig{}, fmt.Errorf("%s must be positive", name)
        }
    }
    // SCAN with COUNT 0 is invalid; fall back to the default batch.
    if c.ScanCount < 1 {
        c.ScanCount = 1000
    }
    return c, nil
}
