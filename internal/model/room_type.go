package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// RoomType is a category of room with a fixed physical inventory and a
// base nightly price.  The booking engine only ever reads room types; they
// are maintained by back-office tooling.
//
// Fields:
//  ID         – primary key identifier.
//  Name       – display name (e.g. "Deluxe King").
//  TotalRooms – number of physical rooms of this type.
//  BasePrice  – default nightly price copied into new inventory records.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type RoomType struct {
    ID         uint64          // room_types.id
    Name       string          // room_types.name
    TotalRooms int             // room_types.total_rooms
    BasePrice  decimal.Decimal // room_types.base_price
    CreatedAt  time.Time       // room_types.created_at
    UpdatedAt  time.Time       // room_types.updated_at
}
