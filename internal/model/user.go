package model

import "time"

// User represents a marketplace account as stored in the `users` table.
// Only the columns the booking core reads are mapped; profile data and
// credentials live elsewhere.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Username  – unique login name, the identity carried by access tokens.
//  Email     – address used for booking emails.
//  CreatedAt – timestamp of creation.
type User struct {
    ID        uint64    // users.id
    Username  string    // users.username
    Email     string    // users.email
    CreatedAt time.Time // users.created_at
}
