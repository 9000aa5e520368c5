// Package queue carries booking events over RabbitMQ: the publisher used by
// the API after each committed mutation and the audit consumer that appends
// them to a log file.
package queue

import (
    "time"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// Event types, also used as routing keys on the booking exchange.
const (
    BookingCreated   = "booking.created"
    BookingModified  = "booking.modified"
    BookingCancelled = "booking.cancelled"
    BookingUpdated   = "booking.updated"
)

// EventItem is one room-type line of a booking event.
type EventItem struct {
    RoomTypeID    uint64          `json:"room_type_id"`
    Quantity      int             `json:"quantity"`
    PricePerNight decimal.Decimal `json:"price_per_night"`
}

// BookingEvent is published after a booking mutation commits.  It carries
// enough of the booking for consumers to audit or notify without querying
// the primary database.
type BookingEvent struct {
    ID          string          `json:"id"`
    Type        string          `json:"type"`
    BookingID   uint64          `json:"booking_id"`
    CustomerID  uint64          `json:"customer_id"`
    RoomTypeID  uint64          `json:"room_type_id"`
    CheckIn     string          `json:"check_in"`
    CheckOut    string          `json:"check_out"`
    NumRooms    int             `json:"num_rooms"`
    TotalAmount decimal.Decimal `json:"total_amount"`
    Status      string          `json:"status"`
    Items       []EventItem     `json:"items,omitempty"`
    Actor       uint64          `json:"actor_user_id,omitempty"`
    OccurredAt  string          `json:"occurred_at"`
}

// NewBookingEvent snapshots b and its items into an event of type typ.
func NewBookingEvent(typ string, b *model.Booking, items []model.BookingItem, actor uint64, at time.Time) BookingEvent {
    ev := BookingEvent{
        ID:          uuid.NewString(),
        Type:        typ,
        BookingID:   b.ID,
        CustomerID:  b.CustomerID,
        RoomTypeID:  b.RoomTypeID,
        CheckIn:     utils.FormatDate(b.CheckIn),
        CheckOut:    utils.FormatDate(b.CheckOut),
        NumRooms:    b.NumRooms,
        TotalAmount: b.TotalAmount,
        Status:      string(b.Status),
        Actor:       actor,
        OccurredAt:  at.UTC().Format(time.RFC3339),
    }
    for _, it := range items {
        ev.Items = append(ev.Items, EventItem{
            RoomTypeID:    it.RoomTypeID,
            Quantity:      it.Quantity,
            PricePerNight: it.PricePerNight,
        })
    }
    return ev
}
