package service

import (
	"errors"
	"strings"
)

// Errors returned by the coordinator.  Handlers map them to HTTP codes;
// anything else is an infrastructure failure.
var (
	// ErrSeatUnavailable: a seat is held by another session, already sold,
	// or the caller's hold is gone.  Recoverable by selecting again.
	ErrSeatUnavailable = errors.New("seat no longer available, please reselect")

	// ErrSeatConflict: payment went through but the seats were confirmed
	// by another booking first.  The booking is FAILED and a refund event
	// has been published.
	ErrSeatConflict = errors.New("booking failed after payment, refund initiated")

	// ErrExpiredHold: the booking window passed before confirmation.
	// Always reported together with ErrSeatUnavailable.
	ErrExpiredHold = errors.New("seat hold expired")

	// ErrInvalidSelection: the booking request names seats the session
	// never selected.
	ErrInvalidSelection = errors.New("seats not part of the session selection")

	ErrUnauthenticated  = errors.New("authenticated user and session required")
	ErrInvalidInput     = errors.New("invalid input")
	ErrShowtimeNotFound = errors.New("showtime not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrNotPending       = errors.New("booking is no longer pending")
)

// UnavailableError lists the seats that could not be taken.  It matches
// ErrSeatUnavailable with errors.Is.
type UnavailableError struct {
	Seats []string
}

func (e *UnavailableError) Error() string {
	if len(e.Seats) == 0 {
		return ErrSeatUnavailable.Error()
	}
	return ErrSeatUnavailable.Error() + ": " + strings.Join(e.Seats, ", ")
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSeatUnavailable
}
