package model

import "time"

// BookingView is the read shape returned to API callers and stored in the
// cache.  It flattens the booking with the listing title and both parties'
// usernames.
type BookingView struct {
    ID               uint64    `json:"id"`
    ListingID        uint64    `json:"listingId"`
    ListingTitle     string    `json:"listingTitle"`
    TenantUsername   string    `json:"tenantUsername"`
    LandlordUsername string    `json:"landlordUsername"`
    StartDate        time.Time `json:"startDate"`
    EndDate          time.Time `json:"endDate"`
    Status           Status    `json:"status"`
}

// Page is one slice of a paginated listing.  Number is zero based.
type Page[T any] struct {
    Content       []T   `json:"content"`
    TotalPages    int   `json:"totalPages"`
    TotalElements int64 `json:"totalElements"`
    Size          int   `json:"size"`
    Number        int   `json:"number"`
}

// NewPage assembles a Page and derives TotalPages from total and size.
func NewPage[T any](content []T, total int64, number, size int) Page[T] {
    if content == nil {
        content = []T{}
    }
    pages := 0
    if size > 0 {
        pages = int((total + int64(size) - 1) / int64(size))
    }
    return Page[T]{
        Content:       content,
        TotalPages:    pages,
        TotalElements: total,
        Size:          size,
        Number:        number,
    }
}

// Empty reports whether the page carries no rows.
func (p Page[T]) Empty() bool { return len(p.Content) == 0 }
