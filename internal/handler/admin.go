package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Sweeper runs one expiry sweep.
type Sweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

// AdminHandler exposes operator actions.
type AdminHandler struct {
	sweeper Sweeper
}

func NewAdminHandler(s Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: s}
}

// Sweep handles POST /v1/admin/sweep.
func (h *AdminHandler) Sweep(c echo.Context) error {
	n, err := h.sweeper.RunOnce(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
