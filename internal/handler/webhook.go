package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/showtime-booking/internal/payment"
	"github.com/iliyamo/showtime-booking/internal/service"
)

const maxWebhookBody = 64 << 10

// WebhookHandler receives payment provider callbacks.
type WebhookHandler struct {
	svc      BookingService
	verifier *payment.Verifier
}

func NewWebhookHandler(svc BookingService, verifier *payment.Verifier) *WebhookHandler {
	return &WebhookHandler{svc: svc, verifier: verifier}
}

// Payment handles POST /v1/payments/webhook.  A callback is answered
// 2xx once its outcome is recorded, including when the booking could
// not be confirmed, so the provider does not redeliver it.  Infrastructure
// failures return 5xx to ask for a retry.
func (h *WebhookHandler) Payment(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	evt, err := h.verifier.Parse(body, c.Request().Header.Get(payment.SignatureHeader))
	if errors.Is(err, payment.ErrInvalidSignature) {
		log.Warn().Str("ip", c.RealIP()).Msg("security: payment webhook with invalid signature")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx := c.Request().Context()
	logger := log.With().Uint64("booking_id", evt.BookingID).Str("event", evt.Event).Logger()

	if evt.Event == payment.EventFailed {
		if err := h.svc.ReleaseBooking(ctx, evt.BookingID, evt.Reason); err != nil {
			if errors.Is(err, service.ErrBookingNotFound) {
				return writeError(c, err)
			}
			logger.Error().Err(err).Msg("release booking after failed payment")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "released"})
	}

	b, err := h.svc.ConfirmBooking(ctx, evt.BookingID, evt.PaymentID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"status": b.Status, "booking_id": b.ID})
	case errors.Is(err, service.ErrSeatConflict),
		errors.Is(err, service.ErrExpiredHold),
		errors.Is(err, service.ErrNotPending):
		logger.Warn().Err(err).Msg("payment captured for a booking that cannot be confirmed")
		resp := echo.Map{"error": err.Error(), "refund_required": !errors.Is(err, service.ErrNotPending)}
		if b != nil {
			resp["status"] = b.Status
			resp["booking_id"] = b.ID
		}
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, service.ErrBookingNotFound), errors.Is(err, service.ErrInvalidInput):
		return writeError(c, err)
	default:
		logger.Error().Err(err).Msg("confirm booking")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
