package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Migrate creates the booking schema when it does not exist yet.  Every
// statement is idempotent so it is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB) error {
	log.Info().Msg("running database migrations")

	migrations := []string{
		createShowtimesTable,
		createShowtimeSeatsTable,
		createBookingsTable,
		createBookingSeatsTable,
		createSoldSeatsTable,
	}

	for i, m := range migrations {
		log.Debug().Int("step", i+1).Msg("running migration")
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	log.Info().Int("steps", len(migrations)).Msg("migrations completed")
	return nil
}

const createShowtimesTable = `
CREATE TABLE IF NOT EXISTS showtimes (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    starts_at DATETIME NOT NULL,
    total_seats INT UNSIGNED NOT NULL,
    sold_count INT UNSIGNED NOT NULL DEFAULT 0,
    base_price_cents INT UNSIGNED NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    CHECK (sold_count <= total_seats)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createShowtimeSeatsTable = `
CREATE TABLE IF NOT EXISTS showtime_seats (
    showtime_id BIGINT UNSIGNED NOT NULL,
    seat_id VARCHAR(16) NOT NULL,
    row_label VARCHAR(8) NOT NULL,
    seat_number INT UNSIGNED NOT NULL,
    seat_type VARCHAR(32) NOT NULL DEFAULT 'standard',
    price_cents INT UNSIGNED NULL,
    PRIMARY KEY (showtime_id, seat_id),
    CONSTRAINT fk_showtime_seats_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT UNSIGNED NOT NULL,
    session_id VARCHAR(64) NOT NULL,
    showtime_id BIGINT UNSIGNED NOT NULL,
    status ENUM('PENDING','CONFIRMED','EXPIRED','FAILED') NOT NULL DEFAULT 'PENDING',
    amount_cents INT UNSIGNED NOT NULL DEFAULT 0,
    payment_ref VARCHAR(128) NULL,
    failure_reason VARCHAR(64) NULL,
    created_at DATETIME(3) NOT NULL,
    updated_at DATETIME(3) NOT NULL,
    KEY idx_bookings_status_created (status, created_at),
    KEY idx_bookings_user (user_id, created_at),
    CONSTRAINT fk_bookings_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createBookingSeatsTable = `
CREATE TABLE IF NOT EXISTS booking_seats (
    booking_id BIGINT UNSIGNED NOT NULL,
    showtime_id BIGINT UNSIGNED NOT NULL,
    seat_id VARCHAR(16) NOT NULL,
    PRIMARY KEY (booking_id, seat_id),
    KEY idx_booking_seats_showtime (showtime_id, seat_id),
    CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// sold_seats is the structural guard against double sale: one row per
// (showtime, seat) for every CONFIRMED booking.
const createSoldSeatsTable = `
CREATE TABLE IF NOT EXISTS sold_seats (
    showtime_id BIGINT UNSIGNED NOT NULL,
    seat_id VARCHAR(16) NOT NULL,
    booking_id BIGINT UNSIGNED NOT NULL,
    sold_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (showtime_id, seat_id),
    CONSTRAINT fk_sold_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
