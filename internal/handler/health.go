package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler answers liveness probes.  When Ping is set the backing
// store is checked as well.
type HealthHandler struct {
	Driver string
	Ping   func(ctx context.Context) error
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(c echo.Context) error {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "store": h.Driver})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "store": h.Driver})
}
