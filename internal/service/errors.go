package service

import (
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/hotel-booking-engine/internal/store"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// Error kinds surfaced by the booking engine.  Callers compare with
// errors.Is; the handler layer maps each kind to an HTTP status.
var (
    ErrInvalidDateRange        = errors.New("invalid date range")
    ErrInvalidRequest          = errors.New("invalid request")
    ErrRoomTypeNotFound        = errors.New("room type not found")
    ErrInventoryNotFound       = errors.New("inventory not found")
    ErrInventoryUnavailable    = errors.New("inventory unavailable")
    ErrBookingNotFound         = errors.New("booking not found")
    ErrBookingAlreadyCancelled = errors.New("booking already cancelled")
    ErrBookingNotModifiable    = errors.New("booking not modifiable")
    ErrInventoryRestore        = errors.New("inventory restore failed")

    // errInventoryNegative signals a reservation that would drive a record
    // below zero after the locked re-check passed.  It cannot happen while
    // rows are locked correctly.
    errInventoryNegative = errors.New("inventory would become negative")
)

// InventoryUnavailableError reports the first date, in ascending order,
// that could not satisfy a reservation.
type InventoryUnavailableError struct {
    RoomTypeID uint64
    Date       time.Time
    Available  int
    Requested  int
}

func (e *InventoryUnavailableError) Error() string {
    return fmt.Sprintf("only %d room(s) available on %s, requested %d",
        e.Available, utils.FormatDate(e.Date), e.Requested)
}

// Is makes errors.Is(err, ErrInventoryUnavailable) hold.
func (e *InventoryUnavailableError) Is(target error) bool {
    return target == ErrInventoryUnavailable
}

// Kind returns the stable tag used in API error bodies, or "INTERNAL" for
// anything the engine does not classify.
func Kind(err error) string {
    switch {
    case err == nil:
        return ""
    case errors.Is(err, ErrInvalidDateRange):
        return "INVALID_DATE_RANGE"
    case errors.Is(err, ErrInvalidRequest):
        return "INVALID_REQUEST"
    case errors.Is(err, ErrRoomTypeNotFound):
        return "ROOM_TYPE_NOT_FOUND"
    case errors.Is(err, ErrInventoryNotFound):
        return "INVENTORY_NOT_FOUND"
    case errors.Is(err, ErrInventoryUnavailable):
        return "INVENTORY_UNAVAILABLE"
    case errors.Is(err, ErrBookingNotFound):
        return "BOOKING_NOT_FOUND"
    case errors.Is(err, ErrBookingAlreadyCancelled):
        return "BOOKING_ALREADY_CANCELLED"
    case errors.Is(err, ErrBookingNotModifiable):
        return "BOOKING_NOT_MODIFIABLE"
    case errors.Is(err, ErrInventoryRestore):
        return "INVENTORY_RESTORE_ERROR"
    case errors.Is(err, store.ErrLockTimeout):
        return "LOCK_TIMEOUT"
    default:
        return "INTERNAL"
    }
}
