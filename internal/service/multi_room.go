package service

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "time"

    "github.com/shopspring/decimal"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/trace"
    "go.uber.org/zap"

    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/store"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// RoomRequest asks for Quantity rooms of one room type.
type RoomRequest struct {
    RoomTypeID uint64
    Quantity   int
}

// MultiRoomBookingInput describes a booking spanning several room types
// over the same stay.
type MultiRoomBookingInput struct {
    CheckIn    time.Time
    CheckOut   time.Time
    Rooms      []RoomRequest
    Customer   CustomerInfo
    AmountPaid decimal.Decimal
    Notes      string
}

// mergeFootprints sums repeated room types, keeping first-seen order.
func mergeFootprints(in []footprint) []footprint {
    idx := make(map[uint64]int, len(in))
    out := make([]footprint, 0, len(in))
    for _, f := range in {
        if i, ok := idx[f.roomTypeID]; ok {
            out[i].quantity += f.quantity
            continue
        }
        idx[f.roomTypeID] = len(out)
        out = append(out, f)
    }
    return out
}

// CreateMultiRoomBooking reserves every requested room type for the stay
// under one parent booking.  Either every room type is reserved or none is.
// Room types are locked in ascending ID order; items keep request order.
func (s *BookingService) CreateMultiRoomBooking(ctx context.Context, in MultiRoomBookingInput) (_ *BookingDetail, err error) {
    started := time.Now()
    ctx, span := tracer.Start(ctx, "booking.create_multi_room", trace.WithAttributes(
        attribute.Int("booking.room_requests", len(in.Rooms)),
    ))
    defer func() {
        endSpan(span, err)
        s.metrics.Observe("create_multi_room_booking", outcome(err), started)
    }()

    checkIn, checkOut := utils.Day(in.CheckIn), utils.Day(in.CheckOut)
    if err := validateStay(checkIn, checkOut, s.today()); err != nil {
        return nil, err
    }
    if len(in.Rooms) == 0 {
        return nil, fmt.Errorf("%w: at least one room request is required", ErrInvalidRequest)
    }
    if in.AmountPaid.IsNegative() {
        return nil, fmt.Errorf("%w: amount paid cannot be negative", ErrInvalidRequest)
    }
    requested := make([]footprint, 0, len(in.Rooms))
    for _, r := range in.Rooms {
        if r.Quantity <= 0 {
            return nil, fmt.Errorf("%w: quantity for room type %d must be positive", ErrInvalidRequest, r.RoomTypeID)
        }
        requested = append(requested, footprint{roomTypeID: r.RoomTypeID, quantity: r.Quantity})
    }
    requested = mergeFootprints(requested)
    cust, err := in.Customer.customer()
    if err != nil {
        return nil, err
    }

    roomTypes := make(map[uint64]*model.RoomType, len(requested))
    for _, f := range requested {
        rt, err := s.roomType(ctx, f.roomTypeID)
        if err != nil {
            return nil, err
        }
        if _, err := s.inventory.precheck(ctx, rt.ID, checkIn, checkOut, f.quantity); err != nil {
            s.logFailure("multi-room booking rejected before reservation", err, zap.Uint64("room_type_id", rt.ID))
            return nil, err
        }
        roomTypes[rt.ID] = rt
    }

    lockOrder := append([]footprint(nil), requested...)
    sort.Slice(lockOrder, func(i, j int) bool { return lockOrder[i].roomTypeID < lockOrder[j].roomTypeID })

    var detail *BookingDetail
    err = s.store.WithinScope(ctx, func(ctx context.Context, sc store.Scope) error {
        return sc.Nested(ctx, func(ctx context.Context, sc store.Scope) error {
            total, numRooms := decimal.Zero, 0
            for _, f := range lockOrder {
                price, err := s.inventory.Reserve(ctx, sc, f.roomTypeID, checkIn, checkOut, f.quantity)
                if err != nil {
                    return err
                }
                total = total.Add(price)
                numRooms += f.quantity
            }
            if err := sc.UpsertCustomer(ctx, &cust); err != nil {
                return fmt.Errorf("upsert customer: %w", err)
            }
            booking := model.Booking{
                CustomerID:  cust.ID,
                RoomTypeID:  requested[0].roomTypeID,
                CheckIn:     checkIn,
                CheckOut:    checkOut,
                NumRooms:    numRooms,
                TotalAmount: total,
                AmountPaid:  in.AmountPaid,
                Status:      model.BookingConfirmed,
                Notes:       strings.TrimSpace(in.Notes),
            }
            if err := sc.InsertBooking(ctx, &booking); err != nil {
                return fmt.Errorf("insert booking: %w", err)
            }
            items := make([]model.BookingItem, 0, len(requested))
            for _, f := range requested {
                items = append(items, model.BookingItem{
                    BookingID:     booking.ID,
                    RoomTypeID:    f.roomTypeID,
                    Quantity:      f.quantity,
                    PricePerNight: roomTypes[f.roomTypeID].BasePrice,
                })
            }
            if err := sc.InsertBookingItems(ctx, items); err != nil {
                return fmt.Errorf("insert booking items: %w", err)
            }
            c := cust
            detail = &BookingDetail{Booking: booking, Customer: &c, Items: items}
            return nil
        })
    })
    if err != nil {
        s.logFailure("create multi-room booking failed", err, zap.Int("room_types", len(requested)))
        return nil, err
    }

    nights := detail.Booking.Nights()
    for _, f := range requested {
        s.metrics.Reserved(roomTypeLabel(f.roomTypeID), f.quantity*nights)
    }
    s.log.Info("multi-room booking created",
        zap.Uint64("booking_id", detail.Booking.ID),
        zap.Int("room_types", len(requested)),
        zap.Int("num_rooms", detail.Booking.NumRooms),
        zap.String("total_amount", detail.Booking.TotalAmount.String()),
    )
    return detail, nil
}
