package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the booking core reads and writes.  Listings and
// users are owned by other services in production; the statements only
// create them when absent so a fresh database can run the core on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username   VARCHAR(64)  NOT NULL,
		email      VARCHAR(255) NOT NULL,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS listings (
		id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		title               VARCHAR(255)    NOT NULL,
		landlord_id         BIGINT UNSIGNED NOT NULL,
		next_available_date DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_listings_landlord (landlord_id),
		CONSTRAINT fk_listings_landlord FOREIGN KEY (landlord_id) REFERENCES users(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		listing_id BIGINT UNSIGNED NOT NULL,
		tenant_id  BIGINT UNSIGNED NOT NULL,
		status     ENUM('PENDING','CONFIRMED','CANCELLED','FINISHED') NOT NULL DEFAULT 'PENDING',
		start_date DATETIME NOT NULL,
		end_date   DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_bookings_listing_status (listing_id, status, end_date),
		KEY idx_bookings_tenant (tenant_id, created_at),
		KEY idx_bookings_status_end (status, end_date),
		CONSTRAINT fk_bookings_listing FOREIGN KEY (listing_id) REFERENCES listings(id),
		CONSTRAINT fk_bookings_tenant FOREIGN KEY (tenant_id) REFERENCES users(id),
		CONSTRAINT chk_bookings_window CHECK (start_date < end_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
