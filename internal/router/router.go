// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking-engine/internal/config"
	"github.com/iliyamo/hotel-booking-engine/internal/handler"
	"github.com/iliyamo/hotel-booking-engine/internal/middleware"
	"github.com/iliyamo/hotel-booking-engine/internal/model"
)

// Deps is everything New needs.  Redis may be nil, which disables the
// response cache and the rate limiter.
type Deps struct {
	JWTSecret      string
	BookingTimeout time.Duration
	Cache          config.CacheConfig
	RateLimit      config.RateLimitConfig
	Redis          *redis.Client
	Gatherer       prometheus.Gatherer
	Log            *zap.Logger

	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Bookings  *handler.BookingHandler
	Inventory *handler.InventoryHandler
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(traceHeader)
	if d.Log != nil {
		e.Use(middleware.RequestLogger(d.Log))
	}

	RegisterRoutes(e, d.Health, d.Gatherer)
	RegisterAuth(e, d.Auth, d.JWTSecret)
	RegisterInventory(e, d.Inventory, d.JWTSecret, d.Cache, d.Redis)
	RegisterBookings(e, d.Bookings, d.JWTSecret, d.BookingTimeout, d.Cache, d.RateLimit, d.Redis, d.Log)
	return e
}

// traceHeader exposes the active trace id, if any, for log correlation.
func traceHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
			c.Response().Header().Set("X-Trace-Id", sc.TraceID().String())
		}
		return next(c)
	}
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, g prometheus.Gatherer) {
	if h == nil {
		h = &handler.HealthHandler{}
	}
	e.GET("/healthz", h.Health)
	if g != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	}
}

// RegisterAuth registers login, token refresh, logout and staff
// management.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	staff := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	staff.GET("/me", a.Me, middleware.RequireRole(model.RoleAdmin, model.RoleFrontDesk))
	staff.POST("/staff", a.CreateStaff, middleware.RequireRole(model.RoleAdmin))
}
