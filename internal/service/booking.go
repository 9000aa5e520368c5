package service

import (
    "context"
    "errors"
    "fmt"
    "net/mail"
    "strconv"
    "strings"
    "time"

    "github.com/shopspring/decimal"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/trace"
    "go.uber.org/zap"

    "github.com/iliyamo/hotel-booking-engine/internal/metrics"
    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/store"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

const (
    defaultListLimit = 100
    maxListLimit     = 500
)

// CustomerInfo is the guest data supplied with a booking request.  Name and
// Email are required; the remaining fields only overwrite stored values
// when non-empty.
type CustomerInfo struct {
    Name          string
    Email         string
    Phone         string
    Address       string
    IDProofType   string
    IDProofNumber string
}

func (c CustomerInfo) customer() (model.Customer, error) {
    name := strings.TrimSpace(c.Name)
    email := strings.ToLower(strings.TrimSpace(c.Email))
    if name == "" {
        return model.Customer{}, fmt.Errorf("%w: customer name is required", ErrInvalidRequest)
    }
    if _, err := mail.ParseAddress(email); err != nil || email == "" {
        return model.Customer{}, fmt.Errorf("%w: customer email is invalid", ErrInvalidRequest)
    }
    return model.Customer{
        Name:          name,
        Email:         email,
        Phone:         strings.TrimSpace(c.Phone),
        Address:       strings.TrimSpace(c.Address),
        IDProofType:   strings.TrimSpace(c.IDProofType),
        IDProofNumber: strings.TrimSpace(c.IDProofNumber),
    }, nil
}

// CreateBookingInput describes a single-room-type booking.
type CreateBookingInput struct {
    Customer   CustomerInfo
    RoomTypeID uint64
    CheckIn    time.Time
    CheckOut   time.Time
    NumRooms   int
    AmountPaid decimal.Decimal
    Notes      string
}

// ModifyBookingInput lists the fields to change; nil keeps the current value.
type ModifyBookingInput struct {
    CheckIn    *time.Time
    CheckOut   *time.Time
    RoomTypeID *uint64
    NumRooms   *int
}

// UpdateBookingInput changes payment and notes only.
type UpdateBookingInput struct {
    AmountPaid *decimal.Decimal
    Notes      *string
}

// BookingDetail is a booking with its customer and items fetched explicitly.
type BookingDetail struct {
    Booking  model.Booking
    Customer *model.Customer
    Items    []model.BookingItem
}

// BookingService is the booking ledger.  Every mutation runs in exactly one
// store scope so that inventory and booking rows change together or not at
// all.
type BookingService struct {
    store     store.Store
    inventory *InventoryService
    log       *zap.Logger
    metrics   *metrics.Metrics
}

// NewBookingService wires a BookingService on top of inv.  log and m may be nil.
func NewBookingService(st store.Store, inv *InventoryService, log *zap.Logger, m *metrics.Metrics) *BookingService {
    if log == nil {
        log = zap.NewNop()
    }
    return &BookingService{store: st, inventory: inv, log: log, metrics: m}
}

func (s *BookingService) today() time.Time { return s.inventory.today() }

func (s *BookingService) roomType(ctx context.Context, id uint64) (*model.RoomType, error) {
    rt, err := s.store.GetRoomType(ctx, id)
    if errors.Is(err, store.ErrNotFound) {
        return nil, fmt.Errorf("%w: id %d", ErrRoomTypeNotFound, id)
    }
    if err != nil {
        return nil, fmt.Errorf("get room type: %w", err)
    }
    return rt, nil
}

// logFailure logs expected rejections at Warn and everything else at Error.
func (s *BookingService) logFailure(msg string, err error, fields ...zap.Field) {
    fields = append(fields, zap.String("kind", Kind(err)), zap.Error(err))
    switch Kind(err) {
    case "INTERNAL", "INVENTORY_RESTORE_ERROR", "LOCK_TIMEOUT":
        s.log.Error(msg, fields...)
    default:
        s.log.Warn(msg, fields...)
    }
}

func appendNote(notes, line string) string {
    return strings.TrimSpace(notes + "\n" + line)
}

func roomTypeLabel(id uint64) string { return strconv.FormatUint(id, 10) }

// CreateBooking reserves NumRooms rooms of one room type for the stay and
// records the booking, its single item and the customer in one scope.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (_ *model.Booking, err error) {
    started := time.Now()
    ctx, span := tracer.Start(ctx, "booking.create", trace.WithAttributes(
        attribute.Int64("room_type.id", int64(in.RoomTypeID)),
        attribute.Int("booking.num_rooms", in.NumRooms),
    ))
    defer func() {
        endSpan(span, err)
        s.metrics.Observe("create_booking", outcome(err), started)
    }()

    checkIn, checkOut := utils.Day(in.CheckIn), utils.Day(in.CheckOut)
    if err := validateStay(checkIn, checkOut, s.today()); err != nil {
        return nil, err
    }
    if in.NumRooms <= 0 {
        return nil, fmt.Errorf("%w: number of rooms must be positive", ErrInvalidRequest)
    }
    if in.AmountPaid.IsNegative() {
        return nil, fmt.Errorf("%w: amount paid cannot be negative", ErrInvalidRequest)
    }
    cust, err := in.Customer.customer()
    if err != nil {
        return nil, err
    }
    rt, err := s.roomType(ctx, in.RoomTypeID)
    if err != nil {
        return nil, err
    }
    if _, err := s.inventory.precheck(ctx, rt.ID, checkIn, checkOut, in.NumRooms); err != nil {
        s.logFailure("booking rejected before reservation", err, zap.Uint64("room_type_id", rt.ID))
        return nil, err
    }

    var booking model.Booking
    err = s.store.WithinScope(ctx, func(ctx context.Context, sc store.Scope) error {
        return sc.Nested(ctx, func(ctx context.Context, sc store.Scope) error {
            total, err := s.inventory.Reserve(ctx, sc, rt.ID, checkIn, checkOut, in.NumRooms)
            if err != nil {
                return err
            }
            if err := sc.UpsertCustomer(ctx, &cust); err != nil {
                return fmt.Errorf("upsert customer: %w", err)
            }
            booking = model.Booking{
                CustomerID:  cust.ID,
                RoomTypeID:  rt.ID,
                CheckIn:     checkIn,
                CheckOut:    checkOut,
                NumRooms:    in.NumRooms,
                TotalAmount: total,
                AmountPaid:  in.AmountPaid,
                Status:      model.BookingConfirmed,
                Notes:       strings.TrimSpace(in.Notes),
            }
            if err := sc.InsertBooking(ctx, &booking); err != nil {
                return fmt.Errorf("insert booking: %w", err)
            }
            items := []model.BookingItem{{
                BookingID:     booking.ID,
                RoomTypeID:    rt.ID,
                Quantity:      in.NumRooms,
                PricePerNight: rt.BasePrice,
            }}
            if err := sc.InsertBookingItems(ctx, items); err != nil {
                return fmt.Errorf("insert booking items: %w", err)
            }
            return nil
        })
    })
    if err != nil {
        s.logFailure("create booking failed", err, zap.Uint64("room_type_id", rt.ID))
        return nil, err
    }

    s.metrics.Reserved(roomTypeLabel(rt.ID), booking.NumRooms*booking.Nights())
    s.log.Info("booking created",
        zap.Uint64("booking_id", booking.ID),
        zap.Uint64("room_type_id", rt.ID),
        zap.Int("num_rooms", booking.NumRooms),
        zap.String("total_amount", booking.TotalAmount.String()),
    )
    span.SetAttributes(attribute.Int64("booking.id", int64(booking.ID)))
    return &booking, nil
}

// footprint is one (room type, quantity) pair held by a booking over its stay.
type footprint struct {
    roomTypeID uint64
    quantity   int
}

// footprintsOf derives what a booking holds from its items, falling back to
// the booking's own fields when it has none.
func footprintsOf(b *model.Booking, items []model.BookingItem) []footprint {
    if len(items) == 0 {
        return []footprint{{roomTypeID: b.RoomTypeID, quantity: b.NumRooms}}
    }
    out := make([]footprint, 0, len(items))
    for _, it := range items {
        out = append(out, footprint{roomTypeID: it.RoomTypeID, quantity: it.Quantity})
    }
    return mergeFootprints(out)
}

func (s *BookingService) getBooking(ctx context.Context, id uint64) (*model.Booking, error) {
    b, err := s.store.GetBooking(ctx, id)
    if errors.Is(err, store.ErrNotFound) {
        return nil, fmt.Errorf("%w: id %d", ErrBookingNotFound, id)
    }
    if err != nil {
        return nil, fmt.Errorf("get booking: %w", err)
    }
    return b, nil
}

func lockBooking(ctx context.Context, sc store.Scope, id uint64) (*model.Booking, error) {
    b, err := sc.LockBooking(ctx, id)
    if errors.Is(err, store.ErrNotFound) {
        return nil, fmt.Errorf("%w: id %d", ErrBookingNotFound, id)
    }
    if err != nil {
        return nil, fmt.Errorf("lock booking: %w", err)
    }
    return b, nil
}

// CancelBooking returns the booking's rooms to inventory and marks it
// CANCELLED.  A non-empty reason is appended to the notes.
func (s *BookingService) CancelBooking(ctx context.Context, id uint64, reason string) (_ *model.Booking, err error) {
    started := time.Now()
    ctx, span := tracer.Start(ctx, "booking.cancel", trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
    defer func() {
        endSpan(span, err)
        s.metrics.Observe("cancel_booking", outcome(err), started)
    }()

    b, err := s.getBooking(ctx, id)
    if err != nil {
        return nil, err
    }
    if b.Status == model.BookingCancelled {
        return nil, fmt.Errorf("%w: id %d", ErrBookingAlreadyCancelled, id)
    }

    var restored []footprint
    err = s.store.WithinScope(ctx, func(ctx context.Context, sc store.Scope) error {
        return sc.Nested(ctx, func(ctx context.Context, sc store.Scope) error {
            locked, err := lockBooking(ctx, sc, id)
            if err != nil {
                return err
            }
            // re-check under the lock so concurrent cancels restore once
            if locked.Status == model.BookingCancelled {
                return fmt.Errorf("%w: id %d", ErrBookingAlreadyCancelled, id)
            }
            items, err := s.store.ListBookingItems(ctx, id)
            if err != nil {
                return fmt.Errorf("list booking items: %w", err)
            }
            restored = footprintsOf(locked, items)
            stays := make([]stay, 0, len(restored))
            for _, f := range restored {
                stays = append(stays, stay{roomTypeID: f.roomTypeID, checkIn: locked.CheckIn, checkOut: locked.CheckOut})
            }
            if err := lockStays(ctx, sc, stays...); err != nil {
                return err
            }
            for _, f := range restored {
                if err := s.inventory.Restore(ctx, sc, f.roomTypeID, locked.CheckIn, locked.CheckOut, f.quantity); err != nil {
                    return err
                }
            }
            locked.Status = model.BookingCancelled
            if r := strings.TrimSpace(reason); r != "" {
                locked.Notes = appendNote(locked.Notes, "Cancellation reason: "+r)
            }
            if err := sc.UpdateBooking(ctx, locked); err != nil {
                return fmt.Errorf("update booking: %w", err)
            }
            b = locked
            return nil
        })
    })
    if err != nil {
        s.logFailure("cancel booking failed", err, zap.Uint64("booking_id", id))
        return nil, err
    }

    for _, f := range restored {
        s.metrics.Restored(roomTypeLabel(f.roomTypeID), f.quantity*b.Nights())
    }
    s.log.Info("booking cancelled", zap.Uint64("booking_id", id))
    return b, nil
}

func describeStay(roomTypeID uint64, checkIn, checkOut time.Time, rooms int) string {
    return fmt.Sprintf("room type %d, %s to %s, %d room(s)",
        roomTypeID, utils.FormatDate(checkIn), utils.FormatDate(checkOut), rooms)
}

// ModifyBooking moves a booking to new dates, room type or quantity.  The
// old reservation is restored and the new one reserved in the same scope,
// so a failed reservation leaves the booking and its original inventory
// untouched.
func (s *BookingService) ModifyBooking(ctx context.Context, id uint64, in ModifyBookingInput) (_ *model.Booking, err error) {
    started := time.Now()
    ctx, span := tracer.Start(ctx, "booking.modify", trace.WithAttributes(attribute.Int64("booking.id", int64(id))))
    defer func() {
        endSpan(span, err)
        s.metrics.Observe("modify_booking", outcome(err), started)
    }()

    b, err := s.getBooking(ctx, id)
    if err != nil {
        return nil, err
    }
    today := s.today()
    if err := modifiable(b, today); err != nil {
        return nil, err
    }

    checkIn, checkOut := b.CheckIn, b.CheckOut
    if in.CheckIn != nil {
        checkIn = utils.Day(*in.CheckIn)
    }
    if in.CheckOut != nil {
        checkOut = utils.Day(*in.CheckOut)
    }
    if err := validateStay(checkIn, checkOut, today); err != nil {
        return nil, err
    }
    roomTypeID := b.RoomTypeID
    if in.RoomTypeID != nil {
        roomTypeID = *in.RoomTypeID
    }
    rt, err := s.roomType(ctx, roomTypeID)
    if err != nil {
        return nil, err
    }
    numRooms := b.NumRooms
    if in.NumRooms != nil {
        numRooms = *in.NumRooms
    }
    if numRooms <= 0 {
        return nil, fmt.Errorf("%w: number of rooms must be positive", ErrInvalidRequest)
    }

    var old model.Booking
    err = s.store.WithinScope(ctx, func(ctx context.Context, sc store.Scope) error {
        return sc.Nested(ctx, func(ctx context.Context, sc store.Scope) error {
            locked, err := lockBooking(ctx, sc, id)
            if err != nil {
                return err
            }
            if err := modifiable(locked, today); err != nil {
                return err
            }
            items, err := s.store.ListBookingItems(ctx, id)
            if err != nil {
                return fmt.Errorf("list booking items: %w", err)
            }
            if len(items) > 1 {
                return fmt.Errorf("%w: multi-room booking %d must be cancelled and rebooked", ErrBookingNotModifiable, id)
            }
            old = *locked

            if err := lockStays(ctx, sc,
                stay{roomTypeID: old.RoomTypeID, checkIn: old.CheckIn, checkOut: old.CheckOut},
                stay{roomTypeID: rt.ID, checkIn: checkIn, checkOut: checkOut},
            ); err != nil {
                return err
            }
            if err := s.inventory.Restore(ctx, sc, old.RoomTypeID, old.CheckIn, old.CheckOut, old.NumRooms); err != nil {
                return err
            }
            total, err := s.inventory.Reserve(ctx, sc, rt.ID, checkIn, checkOut, numRooms)
            if err != nil {
                return err
            }

            locked.RoomTypeID = rt.ID
            locked.CheckIn = checkIn
            locked.CheckOut = checkOut
            locked.NumRooms = numRooms
            locked.TotalAmount = total
            locked.Notes = appendNote(locked.Notes, "Modified: "+
                describeStay(old.RoomTypeID, old.CheckIn, old.CheckOut, old.NumRooms)+" -> "+
                describeStay(rt.ID, checkIn, checkOut, numRooms))
            if err := sc.UpdateBooking(ctx, locked); err != nil {
                return fmt.Errorf("update booking: %w", err)
            }
            if len(items) == 1 {
                item := items[0]
                item.RoomTypeID = rt.ID
                item.Quantity = numRooms
                item.PricePerNight = rt.BasePrice
                if err := sc.UpdateBookingItem(ctx, item); err != nil {
                    return fmt.Errorf("update booking item: %w", err)
                }
            }
            b = locked
            return nil
        })
    })
    if err != nil {
        s.logFailure("modify booking failed", err, zap.Uint64("booking_id", id))
        return nil, err
    }

    s.metrics.Restored(roomTypeLabel(old.RoomTypeID), old.NumRooms*old.Nights())
    s.metrics.Reserved(roomTypeLabel(b.RoomTypeID), b.NumRooms*b.Nights())
    s.log.Info("booking modified",
        zap.Uint64("booking_id", id),
        zap.Uint64("room_type_id", b.RoomTypeID),
        zap.String("total_amount", b.TotalAmount.String()),
    )
    return b, nil
}

// modifiable rejects cancelled bookings and stays that already started.
func modifiable(b *model.Booking, today time.Time) error {
    if b.Status == model.BookingCancelled {
        return fmt.Errorf("%w: booking %d is cancelled", ErrBookingNotModifiable, b.ID)
    }
    if b.CheckIn.Before(today) {
        return fmt.Errorf("%w: booking %d already checked in", ErrBookingNotModifiable, b.ID)
    }
    return nil
}

// GetBooking returns a booking with its customer and items.
func (s *BookingService) GetBooking(ctx context.Context, id uint64) (*BookingDetail, error) {
    b, err := s.getBooking(ctx, id)
    if err != nil {
        return nil, err
    }
    return s.detail(ctx, b)
}

func (s *BookingService) detail(ctx context.Context, b *model.Booking) (*BookingDetail, error) {
    out := &BookingDetail{Booking: *b}
    c, err := s.store.GetCustomer(ctx, b.CustomerID)
    switch {
    case err == nil:
        out.Customer = c
    case !errors.Is(err, store.ErrNotFound):
        return nil, fmt.Errorf("get customer: %w", err)
    }
    out.Items, err = s.store.ListBookingItems(ctx, b.ID)
    if err != nil {
        return nil, fmt.Errorf("list booking items: %w", err)
    }
    return out, nil
}

// ListBookings returns bookings newest first.  Limit defaults to 100 and is
// capped at 500.
func (s *BookingService) ListBookings(ctx context.Context, f store.BookingFilter) ([]model.Booking, error) {
    if f.Limit <= 0 {
        f.Limit = defaultListLimit
    }
    if f.Limit > maxListLimit {
        f.Limit = maxListLimit
    }
    if f.Offset < 0 {
        f.Offset = 0
    }
    if f.Status != "" && f.Status != model.BookingConfirmed && f.Status != model.BookingCancelled {
        return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, f.Status)
    }
    out, err := s.store.ListBookings(ctx, f)
    if err != nil {
        return nil, fmt.Errorf("list bookings: %w", err)
    }
    return out, nil
}

// UpdateBookingDetails records a payment or replaces the notes.  Status and
// stay cannot change through this path.
func (s *BookingService) UpdateBookingDetails(ctx context.Context, id uint64, in UpdateBookingInput) (_ *model.Booking, err error) {
    started := time.Now()
    defer func() { s.metrics.Observe("update_booking", outcome(err), started) }()

    if in.AmountPaid != nil && in.AmountPaid.IsNegative() {
        return nil, fmt.Errorf("%w: amount paid cannot be negative", ErrInvalidRequest)
    }
    var b *model.Booking
    err = s.store.WithinScope(ctx, func(ctx context.Context, sc store.Scope) error {
        locked, err := lockBooking(ctx, sc, id)
        if err != nil {
            return err
        }
        if in.AmountPaid != nil {
            locked.AmountPaid = *in.AmountPaid
        }
        if in.Notes != nil {
            locked.Notes = strings.TrimSpace(*in.Notes)
        }
        if err := sc.UpdateBooking(ctx, locked); err != nil {
            return fmt.Errorf("update booking: %w", err)
        }
        b = locked
        return nil
    })
    if err != nil {
        return nil, err
    }
    s.log.Info("booking updated", zap.Uint64("booking_id", id))
    return b, nil
}
