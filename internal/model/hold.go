package model

import "time"

// Hold is a transient, TTL-bound claim on a seat.  Holds live only in
// the availability cache; at most one unexpired hold exists per
// (showtime, seat) pair.
type Hold struct {
	ShowtimeID      uint64    `json:"showtime_id"`
	SeatID          string    `json:"seat_id"`
	HolderSessionID string    `json:"-"`
	ExpiresAt       time.Time `json:"expires_at"`
	// Provisional is set when the hold could not be written to the
	// cache and only the persistent view was consulted.
	Provisional bool `json:"provisional,omitempty"`
}
