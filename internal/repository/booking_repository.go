package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/showtime-booking/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062

// BookingRepo is the persistent booking store.  It owns the bookings,
// booking_seats and sold_seats tables and is the only writer of
// showtimes.sold_count.  All timestamps are stored in UTC.
//
// sold_seats has PRIMARY KEY (showtime_id, seat_id): a seat can be
// sold once per showtime no matter what the cache layer believed.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for health checks.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, user_id, session_id, showtime_id, status, amount_cents,
       payment_ref, failure_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var status string
	var paymentRef, reason sql.NullString
	err := row.Scan(
		&b.ID, &b.UserID, &b.SessionID, &b.ShowtimeID, &status, &b.AmountCents,
		&paymentRef, &reason, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if paymentRef.Valid {
		pr := paymentRef.String
		b.PaymentRef = &pr
	}
	if reason.Valid {
		rs := reason.String
		b.FailureReason = &rs
	}
	return &b, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func loadSeats(ctx context.Context, q queryer, bookingID uint64) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		seats = append(seats, id)
	}
	return seats, rows.Err()
}

// getBooking loads a booking and its seats.  With forUpdate the booking
// row is locked for the rest of the transaction.
func getBooking(ctx context.Context, q queryer, id uint64, forUpdate bool) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", id, err)
	}
	if b.SeatIDs, err = loadSeats(ctx, q, id); err != nil {
		return nil, fmt.Errorf("load booking seats %d: %w", id, err)
	}
	return b, nil
}

// soldAmong returns which of seatIDs are already in sold_seats.  Inside
// Confirm the read is a locking read so it sees the latest committed
// rows rather than the transaction snapshot.
func soldAmong(ctx context.Context, q queryer, showtimeID uint64, seatIDs []string, locking bool) ([]string, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	query := `SELECT seat_id FROM sold_seats WHERE showtime_id = ? AND seat_id IN (` +
		placeholders(len(seatIDs)) + `) ORDER BY seat_id`
	if locking {
		query += ` FOR UPDATE`
	}
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, showtimeID)
	for _, id := range seatIDs {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sold []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sold = append(sold, id)
	}
	return sold, rows.Err()
}

// CreatePending inserts a PENDING booking and its booking_seats rows in
// one transaction.  b.CreatedAt must be set by the caller; it starts the
// booking's hold window.  When a seat is already sold the transaction is
// rolled back and ErrSeatsSold is returned.  On success b.ID and
// b.Status are populated.
func (r *BookingRepo) CreatePending(ctx context.Context, b *model.Booking) error {
	seats := uniqueSeats(b.SeatIDs)
	if len(seats) == 0 {
		return fmt.Errorf("create booking: no seats")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create booking: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sold, err := soldAmong(ctx, tx, b.ShowtimeID, seats, false)
	if err != nil {
		return fmt.Errorf("check sold seats: %w", err)
	}
	if len(sold) > 0 {
		return fmt.Errorf("%w: %v", ErrSeatsSold, sold)
	}

	createdAt := b.CreatedAt.UTC()
	const ins = `INSERT INTO bookings (user_id, session_id, showtime_id, status, amount_cents, created_at, updated_at)
	             VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		b.UserID, b.SessionID, b.ShowtimeID, string(model.StatusPending), b.AmountCents, createdAt, createdAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	query := `INSERT INTO booking_seats (booking_id, showtime_id, seat_id) VALUES `
	args := make([]interface{}, 0, len(seats)*3)
	for i, seat := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, id, b.ShowtimeID, seat)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert booking seats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create booking: %w", err)
	}
	committed = true

	b.ID = uint64(id)
	b.SeatIDs = seats
	b.Status = model.StatusPending
	b.CreatedAt = createdAt
	b.UpdatedAt = createdAt
	return nil
}

// Confirm promotes a PENDING booking to CONFIRMED.  The whole check and
// write happens in one transaction holding two row locks, always taken
// in the same order: the booking row, then the showtime row.  Every
// confirm for a showtime serialises on the showtime row, so the re-read
// of sold seats and sold_count below cannot race another confirm.
//
// When one of the booking's seats was confirmed by someone else (or the
// showtime is full) the booking is moved to FAILED in the same
// transaction and ErrSeatConflict is returned together with the updated
// booking.  ErrNotPending is returned, with the current booking, when
// the booking is already terminal.
func (r *BookingRepo) Confirm(ctx context.Context, id uint64, paymentRef string, now time.Time) (*model.Booking, error) {
	now = now.UTC()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin confirm: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := getBooking(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if b.Status != model.StatusPending {
		return b, ErrNotPending
	}

	var total, soldCount uint32
	err = tx.QueryRowContext(ctx,
		`SELECT total_seats, sold_count FROM showtimes WHERE id = ? FOR UPDATE`, b.ShowtimeID,
	).Scan(&total, &soldCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock showtime %d: %w", b.ShowtimeID, err)
	}

	taken, err := soldAmong(ctx, tx, b.ShowtimeID, b.SeatIDs, true)
	if err != nil {
		return nil, fmt.Errorf("recheck sold seats: %w", err)
	}
	if len(taken) > 0 || soldCount+uint32(len(b.SeatIDs)) > total {
		if err := markFailed(ctx, tx, b, model.ReasonSeatConflict, now); err != nil {
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit failed booking: %w", err)
		}
		committed = true
		return b, ErrSeatConflict
	}

	query := `INSERT INTO sold_seats (showtime_id, seat_id, booking_id) VALUES `
	args := make([]interface{}, 0, len(b.SeatIDs)*3)
	for i, seat := range b.SeatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, b.ShowtimeID, seat, b.ID)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			// Only reachable if a writer bypassed the showtime lock.
			_ = tx.Rollback()
			committed = true
			if _, terr := r.Transition(ctx, b.ID, model.StatusPending, model.StatusFailed, model.ReasonSeatConflict, now); terr != nil {
				return nil, terr
			}
			b.Status = model.StatusFailed
			reason := model.ReasonSeatConflict
			b.FailureReason = &reason
			b.UpdatedAt = now
			return b, ErrSeatConflict
		}
		return nil, fmt.Errorf("insert sold seats: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE showtimes SET sold_count = sold_count + ? WHERE id = ?`, len(b.SeatIDs), b.ShowtimeID,
	); err != nil {
		return nil, fmt.Errorf("increment sold count: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusConfirmed), paymentRef, now, b.ID,
	); err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirm: %w", err)
	}
	committed = true

	b.Status = model.StatusConfirmed
	b.PaymentRef = &paymentRef
	b.UpdatedAt = now
	return b, nil
}

func markFailed(ctx context.Context, tx *sql.Tx, b *model.Booking, reason string, now time.Time) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusFailed), reason, now, b.ID,
	); err != nil {
		return fmt.Errorf("fail booking: %w", err)
	}
	b.Status = model.StatusFailed
	b.FailureReason = &reason
	b.UpdatedAt = now
	return nil
}

// Transition moves a booking from one status to another only if it is
// still in the from status at the moment of the update.  It reports
// whether this call performed the transition; false means the booking
// was already moved (or does not exist) and nothing was written.
func (r *BookingRepo) Transition(ctx context.Context, id uint64, from, to model.BookingStatus, reason string, now time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	var reasonArg interface{}
	if reason != "" {
		reasonArg = reason
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), reasonArg, now.UTC(), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition booking %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListExpiredPendingIDs returns up to limit PENDING bookings created at
// or before cutoff, oldest first.
func (r *BookingRepo) ListExpiredPendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uint64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = ? AND created_at <= ? ORDER BY created_at, id LIMIT ?`,
		string(model.StatusPending), cutoff.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired bookings: %w", err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByID returns a booking with its seats.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, r.db, id, false)
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].SeatIDs, err = loadSeats(ctx, r.db, out[i].ID); err != nil {
			return nil, fmt.Errorf("load booking seats %d: %w", out[i].ID, err)
		}
	}
	return out, nil
}

// SoldSeatIDs returns every seat of the showtime that belongs to a
// CONFIRMED booking.
func (r *BookingRepo) SoldSeatIDs(ctx context.Context, showtimeID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_id FROM sold_seats WHERE showtime_id = ? ORDER BY seat_id`, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("list sold seats: %w", err)
	}
	defer rows.Close()
	var sold []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sold = append(sold, id)
	}
	return sold, rows.Err()
}
