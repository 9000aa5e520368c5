package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-booking-engine/internal/service"
	"github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// statusOf maps a booking engine error kind to an HTTP status.
func statusOf(kind string) int {
	switch kind {
	case "INVALID_DATE_RANGE", "INVALID_REQUEST", "BOOKING_ALREADY_CANCELLED", "BOOKING_NOT_MODIFIABLE":
		return http.StatusBadRequest
	case "ROOM_TYPE_NOT_FOUND", "BOOKING_NOT_FOUND", "INVENTORY_NOT_FOUND":
		return http.StatusNotFound
	case "INVENTORY_UNAVAILABLE":
		return http.StatusConflict
	case "LOCK_TIMEOUT":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error body for err.  Internal errors are
// not echoed to the client.
func respondError(c echo.Context, err error) error {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "code": "INVALID_REQUEST", "fields": verrs})
	}

	kind := service.Kind(err)
	status := statusOf(kind)
	body := echo.Map{"error": err.Error(), "code": kind}
	switch status {
	case http.StatusInternalServerError:
		body["error"] = "internal error"
	case http.StatusServiceUnavailable:
		body["error"] = "booking system busy, retry"
	}

	var unavailable *service.InventoryUnavailableError
	if errors.As(err, &unavailable) {
		body["room_type_id"] = unavailable.RoomTypeID
		body["date"] = utils.FormatDate(unavailable.Date)
		body["available"] = unavailable.Available
		body["requested"] = unavailable.Requested
	}
	return c.JSON(status, body)
}

// bindAndValidate binds and validates req.  When ok is false the error
// response has already been written and err is its write error.
func bindAndValidate(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body", "code": "INVALID_REQUEST"})
	}
	if err := c.Validate(req); err != nil {
		return false, respondError(c, err)
	}
	return true, nil
}
