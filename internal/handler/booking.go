package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/queue"
	"github.com/iliyamo/hotel-booking-engine/internal/service"
	"github.com/iliyamo/hotel-booking-engine/internal/store"
)

// BookingHandler exposes the booking ledger to front-desk staff.
type BookingHandler struct {
	Bookings *service.BookingService
	Hooks    Hooks
}

func NewBookingHandler(b *service.BookingService, hooks Hooks) *BookingHandler {
	return &BookingHandler{Bookings: b, Hooks: hooks}
}

func bookingID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func invalidID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id", "code": "INVALID_REQUEST"})
}

// respondDetail answers a committed mutation.  The reload of customer and
// items runs detached from the request; when it fails the committed
// booking is still returned, without them.  Hooks always run.
func (h *BookingHandler) respondDetail(c echo.Context, status int, event string, b *model.Booking) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), sideEffectTimeout)
	defer cancel()
	d, err := h.Bookings.GetBooking(ctx, b.ID)
	if err != nil {
		h.Hooks.logger().Warn("reload committed booking failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
		d = &service.BookingDetail{Booking: *b}
	}
	h.Hooks.bookingChanged(c, event, d)
	return c.JSON(status, toDetailResp(d))
}

// List handles GET /v1/bookings?status=&from=&to=&limit=&offset=.
func (h *BookingHandler) List(c echo.Context) error {
	f := store.BookingFilter{Status: model.BookingStatus(strings.ToUpper(c.QueryParam("status")))}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.FromDate}, {"to", &f.ToDate}} {
		if v := c.QueryParam(q.name); v != "" {
			d, err := parseDate(v)
			if err != nil {
				return respondError(c, err)
			}
			*q.dst = &d
		}
	}
	var err error
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return respondError(c, err)
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		return respondError(c, err)
	}

	list, err := h.Bookings.ListBookings(c.Request().Context(), f)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]bookingResp, 0, len(list))
	for i := range list {
		out = append(out, toBookingResp(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out, "count": len(out)})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return invalidID(c)
	}
	d, err := h.Bookings.GetBooking(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toDetailResp(d))
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dates, err := parseDates(req.CheckIn, req.CheckOut)
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.Bookings.CreateBooking(c.Request().Context(), service.CreateBookingInput{
		Customer:   req.Customer.info(),
		RoomTypeID: req.RoomTypeID,
		CheckIn:    dates[0],
		CheckOut:   dates[1],
		NumRooms:   req.NumRooms,
		AmountPaid: req.AmountPaid,
		Notes:      req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return h.respondDetail(c, http.StatusCreated, queue.BookingCreated, b)
}

// CreateMultiRoom handles POST /v1/bookings/multi-room.
func (h *BookingHandler) CreateMultiRoom(c echo.Context) error {
	var req multiRoomReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dates, err := parseDates(req.CheckIn, req.CheckOut)
	if err != nil {
		return respondError(c, err)
	}
	rooms := make([]service.RoomRequest, 0, len(req.Rooms))
	for _, r := range req.Rooms {
		rooms = append(rooms, service.RoomRequest{RoomTypeID: r.RoomTypeID, Quantity: r.Quantity})
	}
	d, err := h.Bookings.CreateMultiRoomBooking(c.Request().Context(), service.MultiRoomBookingInput{
		CheckIn:    dates[0],
		CheckOut:   dates[1],
		Rooms:      rooms,
		Customer:   req.Customer.info(),
		AmountPaid: req.AmountPaid,
		Notes:      req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	h.Hooks.bookingChanged(c, queue.BookingCreated, d)
	return c.JSON(http.StatusCreated, toDetailResp(d))
}

// Update handles PUT /v1/bookings/:id (payment and notes only).
func (h *BookingHandler) Update(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return invalidID(c)
	}
	var req updateBookingReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	b, err := h.Bookings.UpdateBookingDetails(c.Request().Context(), id, service.UpdateBookingInput{
		AmountPaid: req.AmountPaid,
		Notes:      req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return h.respondDetail(c, http.StatusOK, queue.BookingUpdated, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return invalidID(c)
	}
	var req cancelBookingReq
	if c.Request().ContentLength != 0 {
		if ok, err := bindAndValidate(c, &req); !ok {
			return err
		}
	}
	b, err := h.Bookings.CancelBooking(c.Request().Context(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return h.respondDetail(c, http.StatusOK, queue.BookingCancelled, b)
}

// Modify handles PUT /v1/bookings/:id/modify.
func (h *BookingHandler) Modify(c echo.Context) error {
	id, ok := bookingID(c)
	if !ok {
		return invalidID(c)
	}
	var req modifyBookingReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	in := service.ModifyBookingInput{RoomTypeID: req.RoomTypeID, NumRooms: req.NumRooms}
	for _, p := range []struct {
		src *string
		dst **time.Time
	}{{req.CheckIn, &in.CheckIn}, {req.CheckOut, &in.CheckOut}} {
		if p.src == nil {
			continue
		}
		d, err := parseDate(*p.src)
		if err != nil {
			return respondError(c, err)
		}
		*p.dst = &d
	}
	b, err := h.Bookings.ModifyBooking(c.Request().Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return h.respondDetail(c, http.StatusOK, queue.BookingModified, b)
}

func intQuery(c echo.Context, name string) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, ValidationErrors{{Field: name, Message: "must be a non-negative integer"}}
	}
	return n, nil
}
