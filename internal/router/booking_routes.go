package router

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking-engine/internal/cache"
	"github.com/iliyamo/hotel-booking-engine/internal/config"
	"github.com/iliyamo/hotel-booking-engine/internal/handler"
	"github.com/iliyamo/hotel-booking-engine/internal/middleware"
	"github.com/iliyamo/hotel-booking-engine/internal/model"
)

// RegisterBookings registers the booking ledger under /v1/bookings.  Every
// route requires a staff token; reads are cached and mutations are rate
// limited per user.  A positive timeout bounds each request, lock waits
// included.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, timeout time.Duration, cc config.CacheConfig, rl config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	g := e.Group("/v1/bookings",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleFrontDesk),
	)
	if timeout > 0 {
		g.Use(echomw.ContextTimeout(timeout))
	}
	read := middleware.NewRedisCache(cc, rdb, cache.NamespaceBookings)
	limit := middleware.NewTokenBucket(rl, rdb, log)

	g.GET("", h.List, read)
	g.GET("/:id", h.Get, read)

	g.POST("", h.Create, limit)
	g.POST("/multi-room", h.CreateMultiRoom, limit)
	g.PUT("/:id", h.Update, limit)
	g.POST("/:id/cancel", h.Cancel, limit)
	g.PUT("/:id/modify", h.Modify, limit)
}
