package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// InventoryRecord is the sellable capacity of one room type on one calendar
// date.  There is exactly one record per (room type, date).  Records are
// created ahead of time by the inventory generator and afterwards only
// mutated by reservation and compensation, always under a row lock.
//
// Fields:
//  RoomTypeID     – room type this record belongs to.
//  Date           – the night, as a UTC midnight timestamp.
//  AvailableRooms – rooms still sellable; 0 <= AvailableRooms <= TotalRooms.
//  Price          – nightly price snapshot for this date.
type InventoryRecord struct {
    RoomTypeID     uint64          // inventory.room_type_id
    Date           time.Time       // inventory.date
    AvailableRooms int             // inventory.available_rooms
    Price          decimal.Decimal // inventory.price
}

// DailyAvailability is one row of an availability summary.
type DailyAvailability struct {
    Date           time.Time       `json:"date"`
    AvailableRooms int             `json:"available_rooms"`
    Price          decimal.Decimal `json:"price"`
}

// RoomTypeAvailability summarises a room type over a date range.
type RoomTypeAvailability struct {
    RoomTypeID     uint64              `json:"room_type_id"`
    RoomTypeName   string              `json:"room_type_name"`
    StartDate      time.Time           `json:"start_date"`
    EndDate        time.Time           `json:"end_date"`
    MinAvailable   int                 `json:"min_available"`
    TotalPrice     decimal.Decimal     `json:"total_price"`
    DailyBreakdown []DailyAvailability `json:"daily_breakdown"`
}
