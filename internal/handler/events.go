package handler

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking-engine/internal/cache"
	"github.com/iliyamo/hotel-booking-engine/internal/middleware"
	"github.com/iliyamo/hotel-booking-engine/internal/queue"
	"github.com/iliyamo/hotel-booking-engine/internal/service"
)

const sideEffectTimeout = 3 * time.Second

// Invalidator drops cached responses by namespace.
type Invalidator interface {
	Invalidate(ctx context.Context, namespaces ...string) (int64, error)
}

// Hooks run after a booking mutation has committed: cached availability
// and booking listings are invalidated and a booking event is published.
// Failures are logged and never fail the request.
type Hooks struct {
	Cache  Invalidator
	Events queue.Publisher
	Log    *zap.Logger
}

func (h Hooks) invalidate(c echo.Context, namespaces ...string) {
	if h.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), sideEffectTimeout)
	defer cancel()
	if _, err := h.Cache.Invalidate(ctx, namespaces...); err != nil {
		h.logger().Warn("cache invalidation failed", zap.Strings("namespaces", namespaces), zap.Error(err))
	}
}

func (h Hooks) bookingChanged(c echo.Context, typ string, d *service.BookingDetail) {
	h.invalidate(c, cache.NamespaceAvailability, cache.NamespaceBookings)
	if h.Events == nil {
		return
	}
	actor, _ := middleware.UserID(c)
	ev := queue.NewBookingEvent(typ, &d.Booking, d.Items, actor, time.Now())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), sideEffectTimeout)
	defer cancel()
	_ = h.Events.Publish(ctx, ev)
}

func (h Hooks) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
