package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/service"
)

// BookingService is the part of the coordinator the HTTP layer uses.
type BookingService interface {
	SelectSeats(ctx context.Context, in service.SelectSeatsInput) ([]model.Hold, error)
	ReleaseSeats(ctx context.Context, sessionID string, showtimeID uint64, seatIDs []string) error
	SeatMap(ctx context.Context, showtimeID uint64) (*service.SeatMap, error)
	CreatePendingBooking(ctx context.Context, in service.CreatePendingInput) (*model.Booking, error)
	ConfirmBooking(ctx context.Context, id uint64, paymentRef string) (*model.Booking, error)
	ReleaseBooking(ctx context.Context, id uint64, reason string) error
	GetBooking(ctx context.Context, userID, id uint64) (*model.Booking, error)
	ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error)
	CancelBooking(ctx context.Context, userID, id uint64) (*model.Booking, error)
}

// BookingHandler serves seat selection and booking endpoints.  Identity
// comes from the JWT middleware; handlers only translate HTTP to
// coordinator calls.
type BookingHandler struct {
	svc BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

type seatsRequest struct {
	SeatIDs []string `json:"seat_ids"`
}

// SeatMap handles GET /v1/showtimes/:id/seats.
func (h *BookingHandler) SeatMap(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	m, err := h.svc.SeatMap(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// SelectSeats handles POST /v1/showtimes/:id/selection.  Every seat is
// held for the session or none is; 409 lists the seats that were taken.
func (h *BookingHandler) SelectSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body seatsRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	holds, err := h.svc.SelectSeats(c.Request().Context(), service.SelectSeatsInput{
		SessionID:  middleware.SessionID(c),
		ShowtimeID: id,
		SeatIDs:    body.SeatIDs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"holds": holds})
}

// ReleaseSeats handles DELETE /v1/showtimes/:id/selection.  An empty
// body drops the whole selection.
func (h *BookingHandler) ReleaseSeats(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body seatsRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		}
	}
	if err := h.svc.ReleaseSeats(c.Request().Context(), middleware.SessionID(c), id, body.SeatIDs); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateBooking handles POST /v1/bookings.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var body struct {
		ShowtimeID uint64   `json:"showtime_id"`
		SeatIDs    []string `json:"seat_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	b, err := h.svc.CreatePendingBooking(c.Request().Context(), service.CreatePendingInput{
		UserID:     middleware.UserID(c),
		SessionID:  middleware.SessionID(c),
		ShowtimeID: body.ShowtimeID,
		SeatIDs:    body.SeatIDs,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// GetBooking handles GET /v1/bookings/:id.  Only the owner sees it.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.svc.GetBooking(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListBookings handles GET /v1/my-bookings.
func (h *BookingHandler) ListBookings(c echo.Context) error {
	list, err := h.svc.ListBookings(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// CancelBooking handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.svc.CancelBooking(c.Request().Context(), middleware.UserID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
