package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

func selectInput(session string, seats ...string) SelectSeatsInput {
	return SelectSeatsInput{SessionID: session, ShowtimeID: testShowtime, SeatIDs: seats}
}

func requireUnavailable(t *testing.T, err error, seats ...string) {
	t.Helper()
	require.ErrorIs(t, err, ErrSeatUnavailable)
	var ue *UnavailableError
	require.ErrorAs(t, err, &ue)
	assert.ElementsMatch(t, seats, ue.Seats)
}

func TestSelectSeatsSingleWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, losses := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.coord.SelectSeats(ctx, selectInput(fmt.Sprintf("s-%d", i), "A1"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSeatUnavailable):
				losses++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, losses)
}

func TestSelectSeatsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A2"))
	require.NoError(t, err)

	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1", "A2"))
	requireUnavailable(t, err, "A2")

	holds, err := h.coord.SelectSeats(ctx, selectInput("s3", "A1"))
	require.NoError(t, err, "A1 must not stay held after a rejected batch")
	require.Len(t, holds, 1)
	assert.Equal(t, t0.Add(10*time.Minute), holds[0].ExpiresAt)
	assert.False(t, holds[0].Provisional)
}

func TestSelectSeatsSameSessionRefreshes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	require.NoError(t, err)
	_, err = h.coord.SelectSeats(ctx, selectInput("s1", "A1", "A1", "A2"))
	require.NoError(t, err)
}

func TestSelectSeatsValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("", "A1"))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = h.coord.SelectSeats(ctx, selectInput("s1"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.coord.SelectSeats(ctx, selectInput("s1", "Z9"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.coord.SelectSeats(ctx, SelectSeatsInput{SessionID: "s1", ShowtimeID: 7, SeatIDs: []string{"A1"}})
	assert.ErrorIs(t, err, ErrShowtimeNotFound)
}

func TestHoldExpiryFreesSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	require.NoError(t, err)

	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	requireUnavailable(t, err, "A1")

	h.elapse(11 * time.Minute)

	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	assert.NoError(t, err)
}

func TestSelectSeatsRejectsSoldSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)

	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1", "A2"))
	requireUnavailable(t, err, "A1")
}

func TestSelectSeatsDegradesWhenCacheDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)

	h.mr.Close()

	holds, err := h.coord.SelectSeats(ctx, selectInput("s2", "A2"))
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.True(t, holds[0].Provisional)

	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	requireUnavailable(t, err, "A1")
}

func TestCreatePendingBooking(t *testing.T) {
	h := newHarness(t)

	b := h.book(t, 7, "s1", "A1", "A2")
	assert.NotZero(t, b.ID)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, uint32(2400), b.AmountCents)
	assert.Equal(t, t0, b.CreatedAt)
	assert.Equal(t, model.StatusPending, h.store.status(b.ID))
}

func TestCreatePendingRejectsSeatsOutsideSelection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	require.NoError(t, err)

	_, err = h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1", "A2"}})
	assert.ErrorIs(t, err, ErrInvalidSelection)

	// Another session cannot book seats it never selected.
	_, err = h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 8, SessionID: "s2", ShowtimeID: testShowtime, SeatIDs: []string{"A1"}})
	assert.ErrorIs(t, err, ErrInvalidSelection)

	assert.Zero(t, h.store.count(), "no booking row may be created")
}

func TestCreatePendingRequiresLiveHold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	require.NoError(t, err)
	h.mr.Del("hold:{42}:A1")

	_, err = h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1"}})
	requireUnavailable(t, err, "A1")
	assert.Zero(t, h.store.count())
}

func TestCreatePendingRequiresIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.CreatePendingBooking(context.Background(), CreatePendingInput{SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1"}})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreatePendingExtendsHolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	require.NoError(t, err)
	h.elapse(5 * time.Minute)
	_, err = h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1"}})
	require.NoError(t, err)

	// Past the original hold TTL but inside the booking window.
	h.elapse(7 * time.Minute)
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	requireUnavailable(t, err, "A1")
}

func TestCreatePendingRejectsSeatsOfLiveBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.book(t, 7, "s1", "A1")
	h.elapse(9 * time.Minute)

	// Same session, same seats: a second click on "book".
	_, err := h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1"}})
	requireUnavailable(t, err, "A1")
	assert.Equal(t, 1, h.store.count())

	h.elapse(time.Minute)
	n, err := h.coord.ExpireOverdue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.StatusExpired, h.store.status(first.ID))

	// Only now is the seat free for someone else.
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	assert.NoError(t, err)
}

func TestConcurrentCreatePendingSameSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1", "A2"))
	require.NoError(t, err)

	const clicks = 8
	created := make([]*model.Booking, clicks)
	errs := make([]error, clicks)
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			created[i], errs[i] = h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1", "A2"}})
		}(i)
	}
	wg.Wait()

	var winner *model.Booking
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "only one booking may own the holds")
			winner = created[i]
			continue
		}
		assert.ErrorIs(t, err, ErrSeatUnavailable)
	}
	require.NotNil(t, winner)

	// Losers that reached the store are failed, so their cleanup leaves
	// the winner's holds alone.
	n, err := h.coord.ExpireOverdue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	requireUnavailable(t, err, "A1")

	cb, err := h.coord.ConfirmBooking(ctx, winner.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, cb.Status)
}

func TestSessionCannotReleaseBookedSeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")

	require.NoError(t, h.coord.ReleaseSeats(ctx, "s1", testShowtime, []string{"A1"}))
	require.NoError(t, h.coord.ReleaseSeats(ctx, "s1", testShowtime, nil))
	_, err := h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	requireUnavailable(t, err, "A1")

	// Re-selecting would shorten the hold to the selection TTL.
	_, err = h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	requireUnavailable(t, err, "A1")
	assert.Equal(t, 10*time.Minute, h.mr.TTL("hold:{42}:A1"))

	h.elapse(9 * time.Minute)
	cb, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, cb.Status)
}

func TestEndingOneBookingKeepsSiblingHolds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cancelled := h.book(t, 7, "s1", "A1")
	kept := h.book(t, 7, "s1", "A2")

	_, err := h.coord.CancelBooking(ctx, 7, cancelled.ID)
	require.NoError(t, err)

	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	assert.NoError(t, err)
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A2"))
	requireUnavailable(t, err, "A2")

	_, err = h.coord.ConfirmBooking(ctx, kept.ID, "pay_2")
	require.NoError(t, err)
}

func TestCreatePendingWithCacheDownStillRejectsSoldSeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sold := h.book(t, 8, "s2", "A2")
	_, err := h.coord.ConfirmBooking(ctx, sold.ID, "pay_0")
	require.NoError(t, err)
	_, err = h.coord.SelectSeats(ctx, selectInput("s1", "A1"))
	require.NoError(t, err)

	h.mr.Close()

	_, err = h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A2"}})
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.Equal(t, 1, h.store.count())

	b, err := h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: 7, SessionID: "s1", ShowtimeID: testShowtime, SeatIDs: []string{"A1"}})
	require.NoError(t, err)

	// Confirm falls back to the store lock.
	cb, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, cb.Status)
}

func TestConfirmBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1", "A2")
	h.elapse(2 * time.Minute)

	cb, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, cb.Status)
	require.NotNil(t, cb.PaymentRef)
	assert.Equal(t, "pay_1", *cb.PaymentRef)

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, queue.QueueBookingConfirmed, events[0].Type)
	assert.Equal(t, []string{"A1", "A2"}, events[0].Seats)
	assert.False(t, events[0].RefundRequired)

	m, err := h.coord.SeatMap(ctx, testShowtime)
	require.NoError(t, err)
	for _, s := range m.Seats {
		if s.Seat.ID == "A1" || s.Seat.ID == "A2" {
			assert.Equal(t, model.SeatSold, s.State, s.Seat.ID)
		}
	}
	held, err := h.coord.holds.ListHolds(ctx, testShowtime)
	require.NoError(t, err)
	assert.Empty(t, held, "holds are released once seats are sold")
}

func TestConfirmIsIdempotentForSamePaymentRef(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)

	again, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, again.Status)

	_, err = h.coord.ConfirmBooking(ctx, b.ID, "pay_other")
	assert.ErrorIs(t, err, ErrNotPending)

	assert.Len(t, h.events.all(), 1)
}

func TestConfirmAfterWindowExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	h.elapse(11 * time.Minute)

	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_late")
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.ErrorIs(t, err, ErrExpiredHold)
	assert.Equal(t, model.StatusExpired, h.store.status(b.ID))

	events := h.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, queue.QueueBookingExpired, events[0].Type)
	assert.True(t, events[0].RefundRequired)
	assert.Equal(t, "pay_late", events[0].PaymentRef)

	sold, err := h.store.SoldSeatIDs(ctx, testShowtime)
	require.NoError(t, err)
	assert.Empty(t, sold)
}

func TestConfirmAfterHoldLost(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	h.mr.Del("hold:{42}:A1")

	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	assert.ErrorIs(t, err, ErrExpiredHold)
	assert.Equal(t, model.StatusExpired, h.store.status(b.ID))
}

func TestConfirmAfterSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	h.elapse(11 * time.Minute)
	n, err := NewSweeper(h.coord, time.Minute, 10, h.metrics).RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.ErrorIs(t, err, ErrExpiredHold)
	assert.Equal(t, model.StatusExpired, h.store.status(b.ID))
}

// With the cache down two sessions can both reach PENDING for the same
// seat; the locked confirm must still sell it once.
func TestConcurrentConfirmsOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mr.Close()

	var ids []uint64
	for i, session := range []string{"s1", "s2", "s3", "s4"} {
		b, err := h.coord.CreatePendingBooking(ctx, CreatePendingInput{
			UserID: uint64(i + 1), SessionID: session, ShowtimeID: testShowtime, SeatIDs: []string{"B2", fmt.Sprintf("A%d", i+1)},
		})
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint64) {
			defer wg.Done()
			_, errs[i] = h.coord.ConfirmBooking(ctx, id, fmt.Sprintf("pay_%d", id))
		}(i, id)
	}
	wg.Wait()

	confirmed, conflicts := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			confirmed++
			assert.Equal(t, model.StatusConfirmed, h.store.status(ids[i]))
		case errors.Is(err, ErrSeatConflict):
			conflicts++
			assert.Equal(t, model.StatusFailed, h.store.status(ids[i]))
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Equal(t, len(ids)-1, conflicts)

	refunds := 0
	for _, evt := range h.events.all() {
		if evt.RefundRequired {
			refunds++
			assert.Equal(t, queue.QueueBookingFailed, evt.Type)
			assert.Equal(t, model.ReasonSeatConflict, evt.Reason)
		}
	}
	assert.Equal(t, len(ids)-1, refunds)
}

func TestExpireIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")

	moved, err := h.coord.Expire(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = h.coord.Expire(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = h.coord.Fail(ctx, b.ID, model.ReasonPaymentFailed)
	require.NoError(t, err)
	assert.False(t, moved)

	assert.Equal(t, model.StatusExpired, h.store.status(b.ID))
	assert.Len(t, h.events.all(), 1)

	// The seat is free again.
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	assert.NoError(t, err)
}

func TestExpireAfterConfirmIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)

	moved, err := h.coord.Expire(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.Equal(t, model.StatusConfirmed, h.store.status(b.ID))
}

func TestExpireUnknownBooking(t *testing.T) {
	h := newHarness(t)
	_, err := h.coord.Expire(context.Background(), 999)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestReleaseBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	failed := h.book(t, 7, "s1", "A1")
	require.NoError(t, h.coord.ReleaseBooking(ctx, failed.ID, model.ReasonPaymentFailed))
	got, err := h.store.GetByID(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, model.ReasonPaymentFailed, *got.FailureReason)

	expired := h.book(t, 7, "s2", "A2")
	require.NoError(t, h.coord.ReleaseBooking(ctx, expired.ID, "expired"))
	assert.Equal(t, model.StatusExpired, h.store.status(expired.ID))

	// Released seats can be taken by someone else.
	_, err = h.coord.SelectSeats(ctx, selectInput("s3", "A1", "A2"))
	assert.NoError(t, err)
}

func TestReleaseSeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.SelectSeats(ctx, selectInput("s1", "A1", "A2"))
	require.NoError(t, err)

	require.NoError(t, h.coord.ReleaseSeats(ctx, "s1", testShowtime, []string{"A1"}))
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A1"))
	require.NoError(t, err)
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A2"))
	requireUnavailable(t, err, "A2")

	// Releasing someone else's seat does nothing.
	require.NoError(t, h.coord.ReleaseSeats(ctx, "s1", testShowtime, []string{"A1"}))
	_, err = h.coord.SelectSeats(ctx, selectInput("s3", "A1"))
	requireUnavailable(t, err, "A1")

	require.NoError(t, h.coord.ReleaseSeats(ctx, "s1", testShowtime, nil))
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "A2"))
	assert.NoError(t, err)
}

func TestSeatMap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")
	_, err := h.coord.ConfirmBooking(ctx, b.ID, "pay_1")
	require.NoError(t, err)
	_, err = h.coord.SelectSeats(ctx, selectInput("s2", "B1"))
	require.NoError(t, err)

	states := func(m *SeatMap) map[string]model.SeatState {
		out := map[string]model.SeatState{}
		for _, s := range m.Seats {
			out[s.Seat.ID] = s.State
		}
		return out
	}

	m, err := h.coord.SeatMap(ctx, testShowtime)
	require.NoError(t, err)
	assert.False(t, m.Degraded)
	require.Len(t, m.Seats, 10)
	got := states(m)
	assert.Equal(t, model.SeatSold, got["A1"])
	assert.Equal(t, model.SeatHeld, got["B1"])
	assert.Equal(t, model.SeatFree, got["A2"])

	h.mr.Close()
	m, err = h.coord.SeatMap(ctx, testShowtime)
	require.NoError(t, err)
	assert.True(t, m.Degraded)
	got = states(m)
	assert.Equal(t, model.SeatSold, got["A1"])
	assert.Equal(t, model.SeatFree, got["B1"])
}

func TestCancelBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b := h.book(t, 7, "s1", "A1")

	_, err := h.coord.CancelBooking(ctx, 8, b.ID)
	assert.ErrorIs(t, err, ErrBookingNotFound, "other users cannot see the booking")

	cancelled, err := h.coord.CancelBooking(ctx, 7, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, cancelled.Status)
	assert.Equal(t, model.ReasonCancelled, *cancelled.FailureReason)

	_, err = h.coord.CancelBooking(ctx, 7, b.ID)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestGetAndListBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.book(t, 7, "s1", "A1")
	second := h.book(t, 7, "s1", "A2")
	h.book(t, 8, "s2", "B1")

	got, err := h.coord.GetBooking(ctx, 7, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, got.SeatIDs)

	list, err := h.coord.ListBookings(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = h.coord.ListBookings(ctx, 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPublishFailureDoesNotFailConfirm(t *testing.T) {
	h := newHarness(t)
	h.events.err = errBrokerDown

	b := h.book(t, 7, "s1", "A1")
	cb, err := h.coord.ConfirmBooking(context.Background(), b.ID, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, cb.Status)
}

func TestConfirmValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.coord.ConfirmBooking(ctx, 1, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.coord.ConfirmBooking(ctx, 999, "pay_1")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUnavailableErrorMessage(t *testing.T) {
	err := &UnavailableError{Seats: []string{"A1", "A2"}}
	assert.Equal(t, "seat no longer available, please reselect: A1, A2", err.Error())
	assert.True(t, errors.Is(err, ErrSeatUnavailable))
	assert.False(t, errors.Is(err, ErrSeatConflict))
}
