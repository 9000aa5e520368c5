package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-engine/internal/cache"
	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/service"
	"github.com/iliyamo/hotel-booking-engine/internal/store"
)

// RoomTypeReader is the catalogue lookup the inventory endpoints need.
type RoomTypeReader interface {
	GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error)
	ListRoomTypes(ctx context.Context) ([]model.RoomType, error)
}

// InventoryHandler serves room types, availability and inventory
// generation.
type InventoryHandler struct {
	Inventory *service.InventoryService
	RoomTypes RoomTypeReader
	Hooks     Hooks
}

func NewInventoryHandler(inv *service.InventoryService, rts RoomTypeReader, hooks Hooks) *InventoryHandler {
	return &InventoryHandler{Inventory: inv, RoomTypes: rts, Hooks: hooks}
}

// ListRoomTypes handles GET /v1/room-types.
func (h *InventoryHandler) ListRoomTypes(c echo.Context) error {
	rts, err := h.RoomTypes.ListRoomTypes(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	out := make([]roomTypeResp, 0, len(rts))
	for _, rt := range rts {
		out = append(out, roomTypeResp{ID: rt.ID, Name: rt.Name, TotalRooms: rt.TotalRooms, BasePrice: rt.BasePrice})
	}
	return c.JSON(http.StatusOK, echo.Map{"room_types": out})
}

// Availability handles GET /v1/availability?start=&end=[&room_type_id=][&num_rooms=].
// With num_rooms it answers whether that many rooms of room_type_id are
// free every night; otherwise it returns the per-day calendar of one or
// all room types.
func (h *InventoryHandler) Availability(c echo.Context) error {
	dates, err := parseDates(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return respondError(c, err)
	}
	var roomTypeID *uint64
	if v := c.QueryParam("room_type_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return respondError(c, ValidationErrors{{Field: "room_type_id", Message: "must be a positive integer"}})
		}
		roomTypeID = &id
	}
	ctx := c.Request().Context()

	if v := c.QueryParam("num_rooms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return respondError(c, ValidationErrors{{Field: "num_rooms", Message: "must be at least 1"}})
		}
		if roomTypeID == nil {
			return respondError(c, ValidationErrors{{Field: "room_type_id", Message: "is required with num_rooms"}})
		}
		if _, err := h.RoomTypes.GetRoomType(ctx, *roomTypeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = service.ErrRoomTypeNotFound
			}
			return respondError(c, err)
		}
		a, err := h.Inventory.CheckAvailability(ctx, *roomTypeID, dates[0], dates[1], n)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, availabilityResp{
			RoomTypeID:   *roomTypeID,
			StartDate:    c.QueryParam("start"),
			EndDate:      c.QueryParam("end"),
			NumRooms:     n,
			IsAvailable:  a.IsAvailable,
			MinAvailable: a.MinAvailable,
			TotalPrice:   a.TotalPrice,
		})
	}

	sums, err := h.Inventory.AvailabilitySummary(ctx, dates[0], dates[1], roomTypeID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]summaryResp, 0, len(sums))
	for _, s := range sums {
		out = append(out, toSummaryResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"availability": out})
}

// Generate handles POST /v1/room-types/:id/inventory/generate.  Missing
// dates over the next days days are created; existing rows are untouched.
func (h *InventoryHandler) Generate(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room type id", "code": "INVALID_REQUEST"})
	}
	var req generateInventoryReq
	if c.Request().ContentLength != 0 {
		if ok, err := bindAndValidate(c, &req); !ok {
			return err
		}
	}
	ctx := c.Request().Context()
	if _, err := h.RoomTypes.GetRoomType(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = service.ErrRoomTypeNotFound
		}
		return respondError(c, err)
	}
	created, err := h.Inventory.GenerateInventory(ctx, id, req.Days)
	if err != nil {
		return respondError(c, err)
	}
	if created > 0 {
		h.Hooks.invalidate(c, cache.NamespaceAvailability)
	}
	days := req.Days
	if days <= 0 {
		days = h.Inventory.DaysAhead
	}
	return c.JSON(http.StatusOK, echo.Map{"room_type_id": id, "days": days, "created": created})
}
