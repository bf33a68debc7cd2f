// Package repository defines error types that are reused across the
// booking and showtime repositories.  These sentinel values allow the
// coordinator to distinguish a lost race from an infrastructure
// failure without inspecting driver errors.
package repository

import "errors"

// ErrBookingNotFound is returned when a booking lookup yields no rows.
var ErrBookingNotFound = errors.New("booking not found")

// ErrShowtimeNotFound is returned when a showtime lookup yields no rows.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrUnknownSeat is returned when a seat id is not part of the
// showtime's layout.
var ErrUnknownSeat = errors.New("unknown seat")

// ErrSeatsSold is returned by CreatePending when at least one requested
// seat already belongs to a CONFIRMED booking.
var ErrSeatsSold = errors.New("seats already sold")

// ErrSeatConflict is returned by Confirm when a concurrent transaction
// confirmed one of the booking's seats first.  The booking has been
// moved to FAILED by the time the caller sees this error.
var ErrSeatConflict = errors.New("seat conflict")

// ErrNotPending is returned when a transition is requested on a booking
// that already reached a terminal state.
var ErrNotPending = errors.New("booking is not pending")

// ErrInvalidTransition is returned for edges that are not part of the
// booking lifecycle.
var ErrInvalidTransition = errors.New("invalid status transition")
