package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusExpired   BookingStatus = "EXPIRED"
	StatusFailed    BookingStatus = "FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusExpired, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s BookingStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusExpired || s == StatusFailed
}

// CanTransitionTo reports whether s -> next is an edge of the lifecycle.
// Only PENDING bookings move, and they never move back to PENDING.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s != StatusPending {
		return false
	}
	return next.Terminal()
}

// Failure reasons recorded on FAILED and EXPIRED bookings.
const (
	ReasonSeatConflict  = "seat_conflict"
	ReasonPaymentFailed = "payment_failed"
	ReasonHoldLost      = "hold_lost"
	ReasonTimeout       = "timeout"
	ReasonCancelled     = "cancelled"
)

// Booking is the durable record of a (possibly still pending) ticket
// purchase.  Once created it is owned by the booking store.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – authenticated user who created the booking.
//  SessionID     – session whose holds back the booking.
//  ShowtimeID    – showtime being booked.
//  SeatIDs       – seats covered by the booking.
//  Status        – lifecycle state.
//  AmountCents   – price quoted at creation time.
//  PaymentRef    – payment reference reported on confirmation.
//  FailureReason – why the booking ended EXPIRED or FAILED.
//  CreatedAt     – creation timestamp; start of the hold window.
//  UpdatedAt     – last update timestamp.
type Booking struct {
	ID            uint64        `json:"id"`
	UserID        uint64        `json:"user_id"`
	SessionID     string        `json:"-"`
	ShowtimeID    uint64        `json:"showtime_id"`
	SeatIDs       []string      `json:"seat_ids"`
	Status        BookingStatus `json:"status"`
	AmountCents   uint32        `json:"amount_cents"`
	PaymentRef    *string       `json:"payment_ref,omitempty"`
	FailureReason *string       `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ExpiresAt returns the end of the booking's hold window.
func (b *Booking) ExpiresAt(timeout time.Duration) time.Time {
	return b.CreatedAt.Add(timeout)
}
