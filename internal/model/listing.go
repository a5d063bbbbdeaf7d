package model

import "time"

// Listing is a rentable property as seen by the booking core.  The
// landlord columns are joined from `users` so that notifications and
// ownership checks need no second lookup.
//
// Fields:
//  ID                – primary key identifier.
//  Title             – human readable title used in messages.
//  LandlordID        – owner of the listing (users.id).
//  LandlordUsername  – owner's username.
//  LandlordEmail     – owner's email address.
//  NextAvailableDate – earliest instant a new booking may start; derived
//                      from confirmed occupancy and never set by callers.
type Listing struct {
    ID                uint64    // listings.id
    Title             string    // listings.title
    LandlordID        uint64    // listings.landlord_id
    LandlordUsername  string    // users.username (joined)
    LandlordEmail     string    // users.email (joined)
    NextAvailableDate time.Time // listings.next_available_date
}

// Availability is the cached read shape of a listing's next available date.
type Availability struct {
    ListingID         uint64    `json:"listingId"`
    NextAvailableDate time.Time `json:"nextAvailableDate"`
}
