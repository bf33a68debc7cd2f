package model

import "time"

// Showtime represents one scheduled screening.  It is owned by the
// catalog; the booking core only reads it, except for SoldCount which
// is incremented inside the confirm transaction while the showtime row
// is locked.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – movie title.
//  StartsAt       – when the screening begins (UTC).
//  TotalSeats     – capacity of the showtime.
//  SoldCount      – number of seats in CONFIRMED bookings.
//  BasePriceCents – price of one seat in cents.
//  Seats          – static seat layout.
type Showtime struct {
	ID             uint64    // showtimes.id
	Title          string    // showtimes.title
	StartsAt       time.Time // showtimes.starts_at
	TotalSeats     uint32    // showtimes.total_seats
	SoldCount      uint32    // showtimes.sold_count
	BasePriceCents uint32    // showtimes.base_price_cents
	Seats          []Seat    // showtime_seats rows
}

// HasSeat reports whether id is part of the showtime's layout.
func (s *Showtime) HasSeat(id string) bool {
	for _, seat := range s.Seats {
		if seat.ID == id {
			return true
		}
	}
	return false
}

// Remaining returns how many seats are not yet sold.
func (s *Showtime) Remaining() uint32 {
	if s.SoldCount >= s.TotalSeats {
		return 0
	}
	return s.TotalSeats - s.SoldCount
}
