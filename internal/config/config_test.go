package config

import (
    "os"
    "testing"
    "time"
)

func setRequired(t *testing.T) {
    t.Helper()
    t.Setenv("DB_USER", "booking")
    t.Setenv("DB_NAME", "rentals")
    t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoadDefaults(t *testing.T) {
    setRequired(t)

    c, err := Load()
    if err != nil {
        t.Fatalf("Load: %v", err)
    }
    if c.Port != "8080" || c.Env != "dev" {
        t.Errorf("unexpected app defaults: port=%q env=%q", c.Port, c.Env)
    }
    if c.AvailabilityBuffer != time.Hour {
        t.Errorf("AvailabilityBuffer = %s, want 1h", c.AvailabilityBuffer)
    }
    if c.FinalizerAt != "00:00" {
        t.Errorf("FinalizerAt = %q", c.FinalizerAt)
    }
    if c.Cache.BookingTTL != 20*time.Minute || c.Cache.ListingAvailabilityTTL != 30*time.Minute {
        t.Errorf("unexpected cache TTLs: %+v", c.Cache)
    }
    if c.Cache.ScanCount != 1000 {
        t.Errorf("ScanCount = %d, want 1000", c.Cache.ScanCount)
    }
    if c.Redis.Address() != "localhost:6379" {
        t.Errorf("redis address = %q", c.Redis.Address())
    }
}

func TestLoadMissingRequired(t *testing.T) {
    // envconfig treats a set-but-empty variable as present, so unset them.
    for _, k := range []string{"DB_USER", "DB_NAME", "JWT_SECRET"} {
        t.Setenv(k, "")
        os.Unsetenv(k)
    }
    if _, err := Load(); err == nil {
        t.Fatal("expected error for missing required variables")
    }
}

func TestLoadOverrides(t *testing.T) {
    setRequired(t)
    t.Setenv("AVAILABILITY_BUFFER", "90m")
    t.Setenv("FINALIZER_AT", "03:30")
    t.Setenv("CACHE_TENANT_BOOKINGS_TTL", "5m")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")

    c, err := Load()
    if err != nil {
        t.Fatalf("Load: %v", err)
    }
    if c.AvailabilityBuffer != 90*time.Minute {
        t.Errorf("AvailabilityBuffer = %s", c.AvailabilityBuffer)
    }
    if c.Cache.TenantBookingsTTL != 5*time.Minute {
        t.Errorf("TenantBookingsTTL = %s", c.Cache.TenantBookingsTTL)
    }
    if got := c.Redis.Address(); got != "cache:6380" {
        t.Errorf("redis address = %q", got)
    }
}

func TestLoadRejectsBadValues(t *testing.T) {
    cases := map[string]string{
        "FINALIZER_AT":      "25:99",
        "CACHE_BOOKING_TTL": "0s",
    }
    for key, val := range cases {
        t.Run(key, func(t *testing.T) {
            setRequired(t)
            t.Setenv(key, val)
            if _, err := Load(); err == nil {
                t.Fatalf("expected error for %s=%s", key, val)
            }
        })
    }
}

func TestParseClock(t *testing.T) {
    h, m, err := ParseClock("07:45")
    if err != nil || h != 7 || m != 45 {
        t.Fatalf("ParseClock = %d, %d, %v", h, m, err)
    }
    if _, _, err := ParseClock("7pm"); err == nil {
        t.Fatal("expected error")
    }
}
