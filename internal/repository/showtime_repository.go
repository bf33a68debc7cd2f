package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// ShowtimeRepo reads the showtime catalog.  The catalog itself is
// maintained elsewhere; the booking core only needs existence, capacity,
// the seat layout and seat prices.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo given a DB handle.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo {
	return &ShowtimeRepo{db: db}
}

// GetByID loads a showtime with its seat layout.  ErrShowtimeNotFound is
// returned when no such showtime exists.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, title, starts_at, total_seats, sold_count, base_price_cents
	           FROM showtimes WHERE id = ?`
	var s model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Title, &s.StartsAt, &s.TotalSeats, &s.SoldCount, &s.BasePriceCents,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load showtime %d: %w", id, err)
	}

	const seatsQ = `SELECT seat_id, row_label, seat_number, seat_type
	                FROM showtime_seats WHERE showtime_id = ?
	                ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, seatsQ, id)
	if err != nil {
		return nil, fmt.Errorf("load seat layout %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var seat model.Seat
		if err := rows.Scan(&seat.ID, &seat.Row, &seat.Number, &seat.Type); err != nil {
			return nil, err
		}
		s.Seats = append(s.Seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Quote returns the total price in cents for seatIDs.  A seat-level
// price override wins over the showtime's base price.  ErrUnknownSeat is
// returned when any id is not in the layout.
func (r *ShowtimeRepo) Quote(ctx context.Context, showtimeID uint64, seatIDs []string) (uint32, error) {
	seats := uniqueSeats(seatIDs)
	if len(seats) == 0 {
		return 0, nil
	}
	q := `SELECT ss.seat_id, COALESCE(ss.price_cents, s.base_price_cents)
	      FROM showtime_seats ss
	      JOIN showtimes s ON s.id = ss.showtime_id
	      WHERE ss.showtime_id = ? AND ss.seat_id IN (` + placeholders(len(seats)) + `)`
	args := make([]interface{}, 0, len(seats)+1)
	args = append(args, showtimeID)
	for _, id := range seats {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("quote seats: %w", err)
	}
	defer rows.Close()
	var total uint32
	found := 0
	for rows.Next() {
		var seatID string
		var price uint32
		if err := rows.Scan(&seatID, &price); err != nil {
			return 0, err
		}
		total += price
		found++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if found != len(seats) {
		return 0, ErrUnknownSeat
	}
	return total, nil
}
