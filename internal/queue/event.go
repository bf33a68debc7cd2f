// Package queue defines the booking lifecycle events exchanged over the
// message broker together with their publisher and consumer.
package queue

import (
	"time"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// Queue names.  Each lifecycle outcome has its own durable queue so
// consumers can subscribe to only what they act on.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingFailed    = "booking.failed"
	QueueBookingExpired   = "booking.expired"
)

// Queues lists every queue the service publishes to.
var Queues = []string{QueueBookingConfirmed, QueueBookingFailed, QueueBookingExpired}

// BookingEvent is published whenever a booking reaches a terminal
// status.  It carries enough for downstream consumers (notifications,
// refunds, analytics) to act without querying the booking database.
//
// RefundRequired is set when a payment was captured for a booking that
// could not be confirmed; the payment collaborator owns the refund.
type BookingEvent struct {
	Type           string    `json:"type"`
	BookingID      uint64    `json:"booking_id"`
	UserID         uint64    `json:"user_id"`
	ShowtimeID     uint64    `json:"showtime_id"`
	Seats          []string  `json:"seats"`
	AmountCents    uint32    `json:"amount_cents"`
	PaymentRef     string    `json:"payment_ref,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	RefundRequired bool      `json:"refund_required"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewBookingEvent builds the event for b's current status.  The event
// type doubles as the routing key.
func NewBookingEvent(b *model.Booking, at time.Time) BookingEvent {
	evt := BookingEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		ShowtimeID:  b.ShowtimeID,
		Seats:       append([]string(nil), b.SeatIDs...),
		AmountCents: b.AmountCents,
		OccurredAt:  at.UTC(),
	}
	switch b.Status {
	case model.StatusConfirmed:
		evt.Type = QueueBookingConfirmed
	case model.StatusExpired:
		evt.Type = QueueBookingExpired
	default:
		evt.Type = QueueBookingFailed
	}
	if b.PaymentRef != nil {
		evt.PaymentRef = *b.PaymentRef
	}
	if b.FailureReason != nil {
		evt.Reason = *b.FailureReason
	}
	return evt
}
