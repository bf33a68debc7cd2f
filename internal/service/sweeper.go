package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/showtime-booking/internal/metrics"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultSweepBatch    = 100
)

// Sweeper periodically expires PENDING bookings whose window has passed.
// Sweeps never block a confirm for longer than one conditional update:
// a booking confirmed while a sweep is running is simply skipped.
type Sweeper struct {
	coord    *Coordinator
	interval time.Duration
	batch    int
	metrics  *metrics.Booking

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewSweeper builds a sweeper.  Non-positive interval or batch fall back
// to the defaults.
func NewSweeper(coord *Coordinator, interval time.Duration, batch int, m *metrics.Booking) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &Sweeper{coord: coord, interval: interval, batch: batch, metrics: m}
}

// Start runs a sweep immediately and then every interval until Stop is
// called or ctx is cancelled.  Calling Start twice is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	log.Info().Dur("interval", s.interval).Int("batch", s.batch).
		Dur("booking_timeout", s.coord.BookingTimeout()).Msg("starting expiry sweeper")

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})
	ticker, done := s.ticker, s.done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
		for {
			select {
			case <-ticker.C:
				s.sweep(ctx)
			case <-done:
				log.Info().Msg("expiry sweeper stopped")
				return
			case <-ctx.Done():
				log.Info().Msg("expiry sweeper stopped: context done")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.done == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.done = nil
	s.mu.Unlock()
	s.wg.Wait()
}

// RunOnce performs a single sweep and returns how many bookings it
// expired.  Overdue bookings beyond the batch size are left for the next
// sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.metrics.Sweep()
	n, err := s.coord.ExpireOverdue(ctx, s.batch)
	if err != nil {
		return n, err
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("expired overdue bookings")
	} else {
		log.Debug().Msg("no overdue bookings")
	}
	return n, nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
	}
}
