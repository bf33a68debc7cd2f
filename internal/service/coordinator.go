// Package service contains the reservation coordinator and the expiry
// sweeper.  The coordinator sequences every booking operation across the
// transient availability cache and the persistent booking store:
// the cache keeps two users from selecting the same seat, the store's
// locked confirm keeps two payments from buying it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/showtime-booking/internal/clock"
	"github.com/iliyamo/showtime-booking/internal/metrics"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

const (
	DefaultHoldTTL        = 10 * time.Minute
	DefaultBookingTimeout = 10 * time.Minute

	// publishTimeout bounds how long a state change waits on the broker.
	publishTimeout = 3 * time.Second
)

// BookingStore is the persistent side.  Confirm must run its check and
// write under a lock on the showtime; Transition must only move a
// booking that is still in the from status.
type BookingStore interface {
	CreatePending(ctx context.Context, b *model.Booking) error
	Confirm(ctx context.Context, id uint64, paymentRef string, now time.Time) (*model.Booking, error)
	Transition(ctx context.Context, id uint64, from, to model.BookingStatus, reason string, now time.Time) (bool, error)
	ListExpiredPendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	SoldSeatIDs(ctx context.Context, showtimeID uint64) ([]string, error)
}

// Catalog reads showtimes and prices.
type Catalog interface {
	GetByID(ctx context.Context, id uint64) (*model.Showtime, error)
	Quote(ctx context.Context, showtimeID uint64, seatIDs []string) (uint32, error)
}

// HoldCache is the transient availability cache.
type HoldCache interface {
	TryAcquireAll(ctx context.Context, showtimeID uint64, seatIDs []string, holder string, ttl time.Duration) ([]string, error)
	ReleaseAll(ctx context.Context, showtimeID uint64, seatIDs []string, holder string) (int, error)
	HeldBy(ctx context.Context, showtimeID uint64, seatIDs []string, holder string) ([]string, error)
	Transfer(ctx context.Context, showtimeID uint64, seatIDs []string, from, to string, ttl time.Duration) ([]string, error)
	ListHolds(ctx context.Context, showtimeID uint64) ([]string, error)
}

// SelectionStore records what each session has selected.
type SelectionStore interface {
	Add(ctx context.Context, sessionID string, showtimeID uint64, seatIDs []string, ttl time.Duration) error
	Remove(ctx context.Context, sessionID string, showtimeID uint64, seatIDs []string) error
	Members(ctx context.Context, sessionID string, showtimeID uint64) ([]string, error)
	Clear(ctx context.Context, sessionID string, showtimeID uint64) error
}

// EventPublisher delivers lifecycle events.  Failures are logged by the
// coordinator and never fail the booking operation.
type EventPublisher interface {
	Publish(ctx context.Context, evt queue.BookingEvent) error
}

// Coordinator implements the booking operations.
type Coordinator struct {
	store      BookingStore
	catalog    Catalog
	holds      HoldCache
	selections SelectionStore
	events     EventPublisher
	clock      clock.Clock
	metrics    *metrics.Booking

	holdTTL        time.Duration
	bookingTimeout time.Duration
}

type Option func(*Coordinator)

// WithHoldTTL sets how long a selected seat stays held.
func WithHoldTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.holdTTL = d
		}
	}
}

// WithBookingTimeout sets how long a PENDING booking waits for payment.
func WithBookingTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.bookingTimeout = d
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

func WithMetrics(m *metrics.Booking) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator wires the coordinator.  events may be nil.
func NewCoordinator(store BookingStore, catalog Catalog, holds HoldCache, selections SelectionStore, events EventPublisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:          store,
		catalog:        catalog,
		holds:          holds,
		selections:     selections,
		events:         events,
		clock:          clock.NewSystem(),
		holdTTL:        DefaultHoldTTL,
		bookingTimeout: DefaultBookingTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BookingTimeout returns the PENDING window.
func (c *Coordinator) BookingTimeout() time.Duration { return c.bookingTimeout }

type SelectSeatsInput struct {
	SessionID  string
	ShowtimeID uint64
	SeatIDs    []string
}

type CreatePendingInput struct {
	UserID     uint64
	SessionID  string
	ShowtimeID uint64
	SeatIDs    []string
}

// SeatMap is the per-seat state of a showtime.  Degraded means holds
// could not be read and HELD seats are reported as FREE.
type SeatMap struct {
	ShowtimeID uint64                   `json:"showtime_id"`
	Title      string                   `json:"title"`
	StartsAt   time.Time                `json:"starts_at"`
	Remaining  uint32                   `json:"remaining"`
	Seats      []model.SeatAvailability `json:"seats"`
	Degraded   bool                     `json:"degraded,omitempty"`
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func difference(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// loadShowtime returns the showtime after checking every seat id is
// part of its layout.
func (c *Coordinator) loadShowtime(ctx context.Context, showtimeID uint64, seatIDs []string) (*model.Showtime, error) {
	st, err := c.catalog.GetByID(ctx, showtimeID)
	if errors.Is(err, repository.ErrShowtimeNotFound) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, id := range seatIDs {
		if !st.HasSeat(id) {
			return nil, fmt.Errorf("%w: unknown seat %q", ErrInvalidInput, id)
		}
	}
	return st, nil
}

// SelectSeats holds every requested seat for the session, or none.
// Seats already sold or held by another session yield an
// *UnavailableError naming them.  When the cache is unreachable the
// request is served from the persistent sold-seat view and the returned
// holds are marked provisional; the confirm-time lock still prevents a
// double sale.
func (c *Coordinator) SelectSeats(ctx context.Context, in SelectSeatsInput) ([]model.Hold, error) {
	if in.SessionID == "" {
		return nil, ErrUnauthenticated
	}
	seats := dedupe(in.SeatIDs)
	if in.ShowtimeID == 0 || len(seats) == 0 {
		return nil, fmt.Errorf("%w: showtime and at least one seat are required", ErrInvalidInput)
	}
	if _, err := c.loadShowtime(ctx, in.ShowtimeID, seats); err != nil {
		return nil, err
	}

	sold, err := c.store.SoldSeatIDs(ctx, in.ShowtimeID)
	if err != nil {
		return nil, fmt.Errorf("read sold seats: %w", err)
	}
	if taken := intersect(seats, sold); len(taken) > 0 {
		c.metrics.HoldRejected()
		return nil, &UnavailableError{Seats: taken}
	}

	now := c.clock.Now()
	logger := log.With().
		Str("session_id", in.SessionID).
		Uint64("showtime_id", in.ShowtimeID).
		Strs("seats", seats).
		Logger()

	taken, err := c.holds.TryAcquireAll(ctx, in.ShowtimeID, seats, in.SessionID, c.holdTTL)
	if err != nil {
		logger.Warn().Err(err).Msg("availability cache unavailable, serving provisional holds")
		c.metrics.DegradedSelect()
		return buildHolds(in, seats, now.Add(c.holdTTL), true), nil
	}
	if len(taken) > 0 {
		c.metrics.HoldRejected()
		logger.Debug().Strs("taken", taken).Msg("seats held by another session")
		return nil, &UnavailableError{Seats: taken}
	}

	if err := c.selections.Add(ctx, in.SessionID, in.ShowtimeID, seats, c.holdTTL); err != nil {
		if _, rerr := c.holds.ReleaseAll(ctx, in.ShowtimeID, seats, in.SessionID); rerr != nil {
			logger.Warn().Err(rerr).Msg("release holds after selection failure")
		}
		return nil, fmt.Errorf("record selection: %w", err)
	}

	c.metrics.HoldsAcquired(len(seats))
	logger.Info().Msg("seats held")
	return buildHolds(in, seats, now.Add(c.holdTTL), false), nil
}

func buildHolds(in SelectSeatsInput, seats []string, expires time.Time, provisional bool) []model.Hold {
	holds := make([]model.Hold, len(seats))
	for i, id := range seats {
		holds[i] = model.Hold{
			ShowtimeID:      in.ShowtimeID,
			SeatID:          id,
			HolderSessionID: in.SessionID,
			ExpiresAt:       expires,
			Provisional:     provisional,
		}
	}
	return holds
}

// ReleaseSeats deselects seats for the session.  With no seat ids the
// whole selection for the showtime is dropped.  Seats held by other
// sessions are left alone.
func (c *Coordinator) ReleaseSeats(ctx context.Context, sessionID string, showtimeID uint64, seatIDs []string) error {
	if sessionID == "" {
		return ErrUnauthenticated
	}
	if showtimeID == 0 {
		return fmt.Errorf("%w: showtime is required", ErrInvalidInput)
	}
	seats := dedupe(seatIDs)
	if len(seats) == 0 {
		members, err := c.selections.Members(ctx, sessionID, showtimeID)
		if err != nil {
			return fmt.Errorf("read selection: %w", err)
		}
		if _, err := c.holds.ReleaseAll(ctx, showtimeID, members, sessionID); err != nil {
			return err
		}
		return c.selections.Clear(ctx, sessionID, showtimeID)
	}
	if _, err := c.holds.ReleaseAll(ctx, showtimeID, seats, sessionID); err != nil {
		return err
	}
	return c.selections.Remove(ctx, sessionID, showtimeID, seats)
}

// SeatMap reports FREE, HELD or SOLD for every seat of the showtime.
func (c *Coordinator) SeatMap(ctx context.Context, showtimeID uint64) (*SeatMap, error) {
	st, err := c.loadShowtime(ctx, showtimeID, nil)
	if err != nil {
		return nil, err
	}
	sold, err := c.store.SoldSeatIDs(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("read sold seats: %w", err)
	}
	out := &SeatMap{
		ShowtimeID: st.ID,
		Title:      st.Title,
		StartsAt:   st.StartsAt,
		Remaining:  st.Remaining(),
		Seats:      make([]model.SeatAvailability, 0, len(st.Seats)),
	}
	held, err := c.holds.ListHolds(ctx, showtimeID)
	if err != nil {
		log.Warn().Err(err).Uint64("showtime_id", showtimeID).Msg("seat map without holds")
		out.Degraded = true
	}
	soldSet := make(map[string]struct{}, len(sold))
	for _, id := range sold {
		soldSet[id] = struct{}{}
	}
	heldSet := make(map[string]struct{}, len(held))
	for _, id := range held {
		heldSet[id] = struct{}{}
	}
	for _, seat := range st.Seats {
		state := model.SeatFree
		if _, ok := soldSet[seat.ID]; ok {
			state = model.SeatSold
		} else if _, ok := heldSet[seat.ID]; ok {
			state = model.SeatHeld
		}
		out.Seats = append(out.Seats, model.SeatAvailability{Seat: seat, State: state})
	}
	return out, nil
}

// CreatePendingBooking turns the session's held seats into a PENDING
// booking.  Every seat must be in the session's selection
// (ErrInvalidSelection), still held by the session and not sold
// (ErrSeatUnavailable).  Once the row exists the holds are handed to the
// booking for the whole booking window, so the session can no longer
// release, re-select or book them a second time.
//
// When the cache cannot be read the selection and hold checks are
// skipped and logged; the sold-seat check and the confirm-time lock
// still apply.
func (c *Coordinator) CreatePendingBooking(ctx context.Context, in CreatePendingInput) (*model.Booking, error) {
	if in.UserID == 0 || in.SessionID == "" {
		return nil, ErrUnauthenticated
	}
	seats := dedupe(in.SeatIDs)
	if in.ShowtimeID == 0 || len(seats) == 0 {
		return nil, fmt.Errorf("%w: showtime and at least one seat are required", ErrInvalidInput)
	}
	if _, err := c.loadShowtime(ctx, in.ShowtimeID, seats); err != nil {
		return nil, err
	}
	logger := log.With().
		Uint64("user_id", in.UserID).
		Str("session_id", in.SessionID).
		Uint64("showtime_id", in.ShowtimeID).
		Strs("seats", seats).
		Logger()

	cacheDown := false
	selected, err := c.selections.Members(ctx, in.SessionID, in.ShowtimeID)
	if err != nil {
		logger.Warn().Err(err).Msg("selection store unavailable, skipping selection check")
		cacheDown = true
	} else if outside := difference(seats, selected); len(outside) > 0 {
		c.metrics.InvalidSelection()
		logger.Warn().Strs("unselected", outside).Msg("security: booking request names seats outside the session selection")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, outside)
	}

	if !cacheDown {
		missing, err := c.holds.HeldBy(ctx, in.ShowtimeID, seats, in.SessionID)
		if err != nil {
			logger.Warn().Err(err).Msg("availability cache unavailable, skipping hold check")
			cacheDown = true
		} else if len(missing) > 0 {
			return nil, &UnavailableError{Seats: missing}
		}
	}
	amount, err := c.catalog.Quote(ctx, in.ShowtimeID, seats)
	if errors.Is(err, repository.ErrUnknownSeat) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("quote seats: %w", err)
	}

	b := &model.Booking{
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		ShowtimeID:  in.ShowtimeID,
		SeatIDs:     seats,
		AmountCents: amount,
		CreatedAt:   c.clock.Now(),
	}
	if err := c.store.CreatePending(ctx, b); err != nil {
		if errors.Is(err, repository.ErrSeatsSold) {
			return nil, fmt.Errorf("%w: %w", ErrSeatUnavailable, err)
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if !cacheDown {
		lost, err := c.holds.Transfer(ctx, in.ShowtimeID, seats, in.SessionID, bookingHolder(b), c.bookingTimeout)
		switch {
		case err != nil:
			logger.Warn().Err(err).Uint64("booking_id", b.ID).Msg("could not hand holds to the booking")
		case len(lost) > 0:
			// A concurrent request of the same session promoted the holds
			// to its own booking first.
			if _, terr := c.store.Transition(ctx, b.ID, model.StatusPending, model.StatusFailed, model.ReasonHoldLost, c.clock.Now()); terr != nil {
				logger.Error().Err(terr).Uint64("booking_id", b.ID).Msg("fail booking without holds")
			}
			c.metrics.HoldRejected()
			logger.Info().Uint64("booking_id", b.ID).Strs("lost", lost).Msg("holds already belong to another booking")
			return nil, &UnavailableError{Seats: lost}
		}
	}
	c.metrics.Status(string(model.StatusPending))
	logger.Info().Uint64("booking_id", b.ID).Uint32("amount_cents", b.AmountCents).Msg("booking pending")
	return b, nil
}

// ConfirmBooking records a successful payment.  A repeated call with the
// same payment reference returns the confirmed booking.  A booking past
// its window, or whose holds were lost, becomes EXPIRED and the error
// matches both ErrSeatUnavailable and ErrExpiredHold.  When another
// booking confirmed one of the seats first, the booking becomes FAILED
// and ErrSeatConflict is returned.
func (c *Coordinator) ConfirmBooking(ctx context.Context, id uint64, paymentRef string) (*model.Booking, error) {
	if id == 0 || paymentRef == "" {
		return nil, fmt.Errorf("%w: booking id and payment reference are required", ErrInvalidInput)
	}
	b, err := c.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	logger := log.With().Uint64("booking_id", id).Str("payment_ref", paymentRef).Logger()

	if b.Status != model.StatusPending {
		return c.settledConfirm(ctx, b, paymentRef)
	}

	now := c.clock.Now()
	if now.After(b.ExpiresAt(c.bookingTimeout)) {
		logger.Info().Msg("payment arrived after the booking window")
		return c.expireOnConfirm(ctx, b, paymentRef, model.ReasonTimeout)
	}
	// Holds still owned by the session (the booking was created while the
	// cache was away) are adopted here; anything else means they are gone.
	window := b.ExpiresAt(c.bookingTimeout).Sub(now)
	if window < time.Second {
		window = time.Second
	}
	missing, err := c.holds.Transfer(ctx, b.ShowtimeID, b.SeatIDs, b.SessionID, bookingHolder(b), window)
	if err != nil {
		logger.Warn().Err(err).Msg("availability cache unavailable, relying on the confirm lock")
	} else if len(missing) > 0 {
		logger.Info().Strs("seats", missing).Msg("holds lost before payment")
		return c.expireOnConfirm(ctx, b, paymentRef, model.ReasonHoldLost)
	}

	cb, err := c.store.Confirm(ctx, id, paymentRef, now)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrSeatConflict):
		c.metrics.SeatConflict()
		c.metrics.Status(string(model.StatusFailed))
		logger.Warn().Uint64("showtime_id", cb.ShowtimeID).Strs("seats", cb.SeatIDs).Msg("seat conflict at confirm, refund required")
		c.releaseHolds(ctx, cb)
		c.publish(ctx, cb, paymentRef, true)
		return cb, ErrSeatConflict
	case errors.Is(err, repository.ErrNotPending):
		return c.settledConfirm(ctx, cb, paymentRef)
	case errors.Is(err, repository.ErrBookingNotFound):
		return nil, ErrBookingNotFound
	default:
		return nil, fmt.Errorf("confirm booking %d: %w", id, err)
	}

	c.metrics.Status(string(model.StatusConfirmed))
	logger.Info().Uint64("showtime_id", cb.ShowtimeID).Strs("seats", cb.SeatIDs).Msg("booking confirmed")
	c.releaseHolds(ctx, cb)
	c.publish(ctx, cb, paymentRef, false)
	return cb, nil
}

// settledConfirm answers a confirm for a booking that already left
// PENDING.
func (c *Coordinator) settledConfirm(ctx context.Context, b *model.Booking, paymentRef string) (*model.Booking, error) {
	switch b.Status {
	case model.StatusConfirmed:
		if b.PaymentRef != nil && *b.PaymentRef == paymentRef {
			return b, nil
		}
		return b, ErrNotPending
	case model.StatusExpired:
		c.publish(ctx, b, paymentRef, true)
		return b, fmt.Errorf("%w: %w", ErrSeatUnavailable, ErrExpiredHold)
	default:
		return b, ErrNotPending
	}
}

// expireOnConfirm ends a booking whose payment arrived too late.  The
// payment was captured, so the published event asks for a refund.
func (c *Coordinator) expireOnConfirm(ctx context.Context, b *model.Booking, paymentRef, reason string) (*model.Booking, error) {
	moved, err := c.store.Transition(ctx, b.ID, model.StatusPending, model.StatusExpired, reason, c.clock.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		// Someone else settled it in the meantime.
		cur, err := c.getBooking(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		return c.settledConfirm(ctx, cur, paymentRef)
	}
	b.Status = model.StatusExpired
	b.FailureReason = &reason
	c.metrics.Status(string(model.StatusExpired))
	c.releaseHolds(ctx, b)
	c.publish(ctx, b, paymentRef, true)
	return b, fmt.Errorf("%w: %w", ErrSeatUnavailable, ErrExpiredHold)
}

// ReleaseBooking ends a PENDING booking because its payment failed or
// was abandoned.  reason "expired" (or "timeout") expires it; anything
// else fails it with that reason.
func (c *Coordinator) ReleaseBooking(ctx context.Context, id uint64, reason string) error {
	switch reason {
	case "expired", model.ReasonTimeout:
		_, err := c.Expire(ctx, id)
		return err
	case "":
		reason = model.ReasonPaymentFailed
	}
	_, err := c.Fail(ctx, id, reason)
	return err
}

// Expire moves a PENDING booking to EXPIRED and releases its holds.  It
// reports whether this call made the change; expiring a booking that is
// no longer PENDING is a no-op.
func (c *Coordinator) Expire(ctx context.Context, id uint64) (bool, error) {
	return c.finish(ctx, id, model.StatusExpired, model.ReasonTimeout)
}

// Fail moves a PENDING booking to FAILED and releases its holds.  Like
// Expire it is a no-op for a booking that already left PENDING.
func (c *Coordinator) Fail(ctx context.Context, id uint64, reason string) (bool, error) {
	if reason == "" {
		reason = model.ReasonPaymentFailed
	}
	return c.finish(ctx, id, model.StatusFailed, reason)
}

func (c *Coordinator) finish(ctx context.Context, id uint64, to model.BookingStatus, reason string) (bool, error) {
	b, err := c.getBooking(ctx, id)
	if err != nil {
		return false, err
	}
	if b.Status != model.StatusPending {
		return false, nil
	}
	moved, err := c.store.Transition(ctx, id, model.StatusPending, to, reason, c.clock.Now())
	if err != nil {
		return false, err
	}
	if !moved {
		return false, nil
	}
	b.Status = to
	b.FailureReason = &reason
	c.metrics.Status(string(to))
	log.Info().Uint64("booking_id", id).Str("status", string(to)).Str("reason", reason).Msg("booking released")
	c.releaseHolds(ctx, b)
	c.publish(ctx, b, "", false)
	return true, nil
}

// CancelBooking lets the owner abandon a PENDING booking.
func (c *Coordinator) CancelBooking(ctx context.Context, userID, id uint64) (*model.Booking, error) {
	b, err := c.GetBooking(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	moved, err := c.Fail(ctx, id, model.ReasonCancelled)
	if err != nil {
		return nil, err
	}
	if !moved {
		return b, ErrNotPending
	}
	return c.getBooking(ctx, id)
}

// GetBooking returns a booking owned by userID.  Bookings of other users
// are reported as not found.
func (c *Coordinator) GetBooking(ctx context.Context, userID, id uint64) (*model.Booking, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	b, err := c.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

// ListBookings returns the user's bookings, newest first.
func (c *Coordinator) ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	return c.store.ListByUser(ctx, userID)
}

// ExpireOverdue expires up to limit PENDING bookings whose window has
// passed and returns how many this call moved.
func (c *Coordinator) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	cutoff := c.clock.Now().Add(-c.bookingTimeout)
	ids, err := c.store.ListExpiredPendingIDs(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		moved, err := c.Expire(ctx, id)
		if err != nil {
			log.Error().Err(err).Uint64("booking_id", id).Msg("expire booking")
			continue
		}
		if moved {
			expired++
		}
	}
	return expired, nil
}

func (c *Coordinator) getBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := c.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// bookingHolder is the hold owner of a booking's seats.  It differs from
// the session's own holder so ending one booking never touches the holds
// of another.
func bookingHolder(b *model.Booking) string {
	return b.SessionID + "#" + strconv.FormatUint(b.ID, 10)
}

// releaseHolds drops the booking's holds and its seats from the session
// selection.  The holds expire on their own, so failures are only
// logged.
func (c *Coordinator) releaseHolds(ctx context.Context, b *model.Booking) {
	if b.SessionID == "" || len(b.SeatIDs) == 0 {
		return
	}
	if _, err := c.holds.ReleaseAll(ctx, b.ShowtimeID, b.SeatIDs, bookingHolder(b)); err != nil {
		log.Warn().Err(err).Uint64("booking_id", b.ID).Msg("release holds")
	}
	if err := c.selections.Remove(ctx, b.SessionID, b.ShowtimeID, b.SeatIDs); err != nil {
		log.Warn().Err(err).Uint64("booking_id", b.ID).Msg("clear selection")
	}
}

func (c *Coordinator) publish(ctx context.Context, b *model.Booking, paymentRef string, refund bool) {
	if c.events == nil {
		return
	}
	evt := queue.NewBookingEvent(b, c.clock.Now())
	if paymentRef != "" {
		evt.PaymentRef = paymentRef
	}
	evt.RefundRequired = refund
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := c.events.Publish(ctx, evt); err != nil {
		log.Error().Err(err).Uint64("booking_id", b.ID).Str("type", evt.Type).Msg("publish booking event")
	}
}
