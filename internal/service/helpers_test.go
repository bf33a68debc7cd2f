package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/cache"
	"github.com/iliyamo/showtime-booking/internal/metrics"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/repository"
)

const testShowtime uint64 = 42

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// manualClock is a settable clock for tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory BookingStore.  A single mutex makes Confirm
// atomic the way the showtime row lock does in MySQL.
type memStore struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking
	sold     map[string]uint64 // "showtime/seat" -> booking id
	capacity uint32
}

func newMemStore() *memStore {
	return &memStore{bookings: map[uint64]*model.Booking{}, sold: map[string]uint64{}, capacity: 100}
}

func soldKey(showtimeID uint64, seat string) string { return fmt.Sprintf("%d/%s", showtimeID, seat) }

func clone(b *model.Booking) *model.Booking {
	c := *b
	c.SeatIDs = append([]string(nil), b.SeatIDs...)
	return &c
}

func (s *memStore) CreatePending(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sold []string
	for _, seat := range b.SeatIDs {
		if _, ok := s.sold[soldKey(b.ShowtimeID, seat)]; ok {
			sold = append(sold, seat)
		}
	}
	if len(sold) > 0 {
		return fmt.Errorf("%w: %v", repository.ErrSeatsSold, sold)
	}
	s.nextID++
	b.ID = s.nextID
	b.Status = model.StatusPending
	b.UpdatedAt = b.CreatedAt
	s.bookings[b.ID] = clone(b)
	return nil
}

func (s *memStore) Confirm(_ context.Context, id uint64, paymentRef string, now time.Time) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if b.Status != model.StatusPending {
		return clone(b), repository.ErrNotPending
	}
	conflict := uint32(len(s.sold)+len(b.SeatIDs)) > s.capacity
	for _, seat := range b.SeatIDs {
		if _, taken := s.sold[soldKey(b.ShowtimeID, seat)]; taken {
			conflict = true
		}
	}
	if conflict {
		reason := model.ReasonSeatConflict
		b.Status = model.StatusFailed
		b.FailureReason = &reason
		b.UpdatedAt = now
		return clone(b), repository.ErrSeatConflict
	}
	for _, seat := range b.SeatIDs {
		s.sold[soldKey(b.ShowtimeID, seat)] = b.ID
	}
	ref := paymentRef
	b.Status = model.StatusConfirmed
	b.PaymentRef = &ref
	b.UpdatedAt = now
	return clone(b), nil
}

func (s *memStore) Transition(_ context.Context, id uint64, from, to model.BookingStatus, reason string, now time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, repository.ErrInvalidTransition
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	if reason != "" {
		r := reason
		b.FailureReason = &r
	}
	b.UpdatedAt = now
	return true, nil
}

func (s *memStore) ListExpiredPendingIDs(_ context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, b := range s.bookings {
		if b.Status == model.StatusPending && !b.CreatedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return clone(b), nil
}

func (s *memStore) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) SoldSeatIDs(_ context.Context, showtimeID uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	prefix := fmt.Sprintf("%d/", showtimeID)
	for k := range s.sold {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) status(id uint64) model.BookingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id].Status
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// memCatalog serves one showtime with seats A1..A5 and B1..B5.
type memCatalog struct{ showtime *model.Showtime }

func newMemCatalog() *memCatalog {
	st := &model.Showtime{ID: testShowtime, Title: "Late Show", StartsAt: t0.Add(3 * time.Hour), TotalSeats: 10, BasePriceCents: 1200}
	for _, row := range []string{"A", "B"} {
		for n := uint32(1); n <= 5; n++ {
			st.Seats = append(st.Seats, model.Seat{ID: fmt.Sprintf("%s%d", row, n), Row: row, Number: n, Type: "standard"})
		}
	}
	return &memCatalog{showtime: st}
}

func (c *memCatalog) GetByID(_ context.Context, id uint64) (*model.Showtime, error) {
	if id != c.showtime.ID {
		return nil, repository.ErrShowtimeNotFound
	}
	st := *c.showtime
	return &st, nil
}

func (c *memCatalog) Quote(_ context.Context, showtimeID uint64, seatIDs []string) (uint32, error) {
	for _, id := range seatIDs {
		if !c.showtime.HasSeat(id) {
			return 0, repository.ErrUnknownSeat
		}
	}
	return c.showtime.BasePriceCents * uint32(len(seatIDs)), nil
}

// recordingPublisher keeps every event it is handed.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) all() []queue.BookingEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.BookingEvent(nil), p.events...)
}

type harness struct {
	coord   *Coordinator
	store   *memStore
	mr      *miniredis.Miniredis
	clock   *manualClock
	events  *recordingPublisher
	metrics *metrics.Booking
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	h := &harness{
		store:   newMemStore(),
		mr:      mr,
		clock:   &manualClock{now: t0},
		events:  &recordingPublisher{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.coord = NewCoordinator(h.store, newMemCatalog(), cache.NewAvailability(rdb), cache.NewSelections(rdb), h.events,
		WithClock(h.clock),
		WithMetrics(h.metrics),
		WithHoldTTL(10*time.Minute),
		WithBookingTimeout(10*time.Minute),
	)
	return h
}

// elapse moves both the coordinator clock and Redis TTLs forward.
func (h *harness) elapse(d time.Duration) {
	h.clock.Advance(d)
	h.mr.FastForward(d)
}

// book selects seats for session and creates a PENDING booking.
func (h *harness) book(t *testing.T, userID uint64, session string, seats ...string) *model.Booking {
	t.Helper()
	ctx := context.Background()
	_, err := h.coord.SelectSeats(ctx, SelectSeatsInput{SessionID: session, ShowtimeID: testShowtime, SeatIDs: seats})
	require.NoError(t, err)
	b, err := h.coord.CreatePendingBooking(ctx, CreatePendingInput{UserID: userID, SessionID: session, ShowtimeID: testShowtime, SeatIDs: seats})
	require.NoError(t, err)
	return b
}

var errBrokerDown = errors.New("broker down")
