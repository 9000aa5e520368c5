package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.  The only transition
// is CONFIRMED -> CANCELLED.
type BookingStatus string

const (
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is the customer-facing reservation aggregate.  RoomTypeID is the
// primary room type; for multi-room bookings it is the first requested
// type and the authoritative breakdown lives in the booking items.
// NumRooms is the aggregate room count across all items.
//
// Fields:
//  ID          – primary key identifier.
//  CustomerID  – guest who owns the booking.
//  RoomTypeID  – primary room type.
//  CheckIn     – first night (inclusive), UTC midnight.
//  CheckOut    – departure date (exclusive), UTC midnight.
//  NumRooms    – rooms reserved per night.
//  TotalAmount – sum of reserved nightly prices.
//  AmountPaid  – amount collected so far.
//  Status      – CONFIRMED or CANCELLED.
//  Notes       – free text; cancellation and modification notes are appended.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Booking struct {
    ID          uint64          // bookings.id
    CustomerID  uint64          // bookings.customer_id
    RoomTypeID  uint64          // bookings.room_type_id
    CheckIn     time.Time       // bookings.check_in
    CheckOut    time.Time       // bookings.check_out
    NumRooms    int             // bookings.num_rooms
    TotalAmount decimal.Decimal // bookings.total_amount
    AmountPaid  decimal.Decimal // bookings.amount_paid
    Status      BookingStatus   // bookings.status
    Notes       string          // bookings.notes
    CreatedAt   time.Time       // bookings.created_at
    UpdatedAt   time.Time       // bookings.updated_at
}

// BalanceDue is the amount still owed on the booking.
func (b *Booking) BalanceDue() decimal.Decimal {
    return b.TotalAmount.Sub(b.AmountPaid)
}

// Nights returns the number of nights covered by the booking.
func (b *Booking) Nights() int {
    return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}

// BookingItem is one room-type line of a booking.  PricePerNight is a
// snapshot taken at booking time and does not follow later price changes.
type BookingItem struct {
    ID            uint64          // booking_items.id
    BookingID     uint64          // booking_items.booking_id
    RoomTypeID    uint64          // booking_items.room_type_id
    Quantity      int             // booking_items.quantity
    PricePerNight decimal.Decimal // booking_items.price_per_night
}
