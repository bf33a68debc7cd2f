package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/showtime-booking/internal/service"
)

// writeError maps coordinator errors to HTTP responses.  Unknown errors
// are logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
	var ue *service.UnavailableError
	switch {
	case errors.Is(err, service.ErrExpiredHold):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrSeatUnavailable.Error(), "code": "hold_expired"})
	case errors.As(err, &ue):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrSeatUnavailable.Error(), "code": "seat_unavailable", "seats": ue.Seats})
	case errors.Is(err, service.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrSeatUnavailable.Error(), "code": "seat_unavailable"})
	case errors.Is(err, service.ErrSeatConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrSeatConflict.Error(), "code": "seat_conflict"})
	case errors.Is(err, service.ErrInvalidSelection):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": service.ErrSeatUnavailable.Error(), "code": "invalid_selection"})
	case errors.Is(err, service.ErrNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"error": service.ErrNotPending.Error(), "code": "not_pending"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "code": "invalid_input"})
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrShowtimeNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	case errors.Is(err, service.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
