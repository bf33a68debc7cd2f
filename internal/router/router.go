// Package router registers the HTTP routes of the booking API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/middleware"
)

// Deps bundles everything RegisterRoutes needs.  Metrics and RateLimit
// are optional.
type Deps struct {
	Bookings  *handler.BookingHandler
	Webhooks  *handler.WebhookHandler
	Admin     *handler.AdminHandler
	Health    echo.HandlerFunc
	Metrics   http.Handler
	JWTSecret string
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes maps the API onto e.
//
// Public:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /v1/showtimes/:id/seats
//	POST /v1/payments/webhook        (HMAC signed, no JWT)
//
// Authenticated (CUSTOMER or ADMIN):
//
//	POST   /v1/showtimes/:id/selection
//	DELETE /v1/showtimes/:id/selection
//	POST   /v1/bookings
//	GET    /v1/bookings/:id
//	POST   /v1/bookings/:id/cancel
//	GET    /v1/my-bookings
//
// Admin:
//
//	POST /v1/admin/sweep
func RegisterRoutes(e *echo.Echo, d Deps) {
	if d.Health != nil {
		e.GET("/healthz", d.Health)
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	e.GET("/v1/showtimes/:id/seats", d.Bookings.SeatMap)
	e.POST("/v1/payments/webhook", d.Webhooks.Payment)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(d.JWTSecret))
	auth.Use(middleware.RequireRole("CUSTOMER", "ADMIN"))
	if d.RateLimit != nil {
		auth.Use(d.RateLimit)
	}

	auth.POST("/showtimes/:id/selection", d.Bookings.SelectSeats)
	auth.DELETE("/showtimes/:id/selection", d.Bookings.ReleaseSeats)
	auth.POST("/bookings", d.Bookings.CreateBooking)
	auth.GET("/bookings/:id", d.Bookings.GetBooking)
	auth.POST("/bookings/:id/cancel", d.Bookings.CancelBooking)
	auth.GET("/my-bookings", d.Bookings.ListBookings)

	if d.Admin != nil {
		admin := auth.Group("/admin", middleware.RequireRole("ADMIN"))
		admin.POST("/sweep", d.Admin.Sweep)
	}
}
