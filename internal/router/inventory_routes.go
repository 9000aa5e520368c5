package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-booking-engine/internal/cache"
	"github.com/iliyamo/hotel-booking-engine/internal/config"
	"github.com/iliyamo/hotel-booking-engine/internal/handler"
	"github.com/iliyamo/hotel-booking-engine/internal/middleware"
	"github.com/iliyamo/hotel-booking-engine/internal/model"
)

// RegisterInventory registers the public catalogue and availability
// endpoints, both cached, and the admin-only inventory generator.
func RegisterInventory(e *echo.Echo, h *handler.InventoryHandler, jwtSecret string, cc config.CacheConfig, rdb *redis.Client) {
	e.GET("/v1/room-types", h.ListRoomTypes, middleware.NewRedisCache(cc, rdb, cache.NamespaceRoomTypes))
	e.GET("/v1/availability", h.Availability, middleware.NewRedisCache(cc, rdb, cache.NamespaceAvailability))

	admin := e.Group("/v1/room-types",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/:id/inventory/generate", h.Generate)
}
