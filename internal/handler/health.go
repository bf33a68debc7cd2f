package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything that can report its own reachability.
type Pinger func(ctx context.Context) error

// Health reports liveness and the reachability of each dependency.  The
// service keeps serving while the cache is down, so only the database
// makes the check fail.
func Health(db Pinger, cache Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := echo.Map{"status": "ok", "database": "ok", "cache": "ok"}
		if db != nil {
			if err := db(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
				body["database"] = err.Error()
			}
		}
		if cache != nil {
			if err := cache(ctx); err != nil {
				body["cache"] = "degraded"
			}
		}
		return c.JSON(status, body)
	}
}
