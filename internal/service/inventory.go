package service

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "time"

    "github.com/shopspring/decimal"
    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/attribute"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/trace"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/hotel-booking-engine/internal/metrics"
    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/store"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

var tracer = otel.Tracer("github.com/iliyamo/hotel-booking-engine/internal/service")

// DefaultDaysAhead is the inventory horizon used when a caller does not
// specify one.
const DefaultDaysAhead = 90

// summaryConcurrency bounds the room types evaluated in parallel by
// AvailabilitySummary.
const summaryConcurrency = 4

// Availability is the advisory answer of CheckAvailability.  It may be
// stale by the time a reservation is attempted.
type Availability struct {
    IsAvailable  bool            `json:"is_available"`
    MinAvailable int             `json:"min_available"`
    TotalPrice   decimal.Decimal `json:"total_price"`
}

// InventoryService owns every read and write of per-date room inventory:
// the advisory availability check, reservation and compensation inside a
// caller's scope, and generation of future inventory rows.
type InventoryService struct {
    store   store.Store
    log     *zap.Logger
    metrics *metrics.Metrics
    now     func() time.Time

    // DaysAhead is the generation horizon used when GenerateInventory is
    // called with days <= 0.
    DaysAhead int
}

// NewInventoryService wires an InventoryService.  log and m may be nil.
func NewInventoryService(st store.Store, log *zap.Logger, m *metrics.Metrics) *InventoryService {
    if log == nil {
        log = zap.NewNop()
    }
    return &InventoryService{store: st, log: log, metrics: m, now: time.Now, DaysAhead: DefaultDaysAhead}
}

func (s *InventoryService) today() time.Time { return utils.Day(s.now()) }

// validateStay enforces the booking date rules: check-out strictly after
// check-in and check-in not before today.
func validateStay(start, end, today time.Time) error {
    if !end.After(start) {
        return fmt.Errorf("%w: check-out must be after check-in", ErrInvalidDateRange)
    }
    if start.Before(today) {
        return fmt.Errorf("%w: check-in cannot be in the past", ErrInvalidDateRange)
    }
    return nil
}

func endSpan(span trace.Span, err error) {
    if err != nil {
        span.RecordError(err)
        span.SetStatus(codes.Error, Kind(err))
    }
    span.End()
}

// CheckAvailability reports, without locking, whether quantity rooms of the
// room type are free on every night of [start, end).
func (s *InventoryService) CheckAvailability(ctx context.Context, roomTypeID uint64, start, end time.Time, quantity int) (_ *Availability, err error) {
    ctx, span := tracer.Start(ctx, "inventory.check_availability", trace.WithAttributes(
        attribute.Int64("room_type.id", int64(roomTypeID)),
        attribute.Int("inventory.quantity", quantity),
    ))
    defer func() { endSpan(span, err) }()

    out, _, err := s.availability(ctx, roomTypeID, start, end, quantity)
    if err != nil {
        return nil, err
    }
    span.SetAttributes(attribute.Bool("inventory.available", out.IsAvailable))
    return out, nil
}

// precheck is the fail-fast form of CheckAvailability used before a scope
// is opened: a shortfall is reported as an InventoryUnavailableError naming
// the first short date.
func (s *InventoryService) precheck(ctx context.Context, roomTypeID uint64, start, end time.Time, quantity int) (*Availability, error) {
    out, recs, err := s.availability(ctx, roomTypeID, start, end, quantity)
    if err != nil {
        return nil, err
    }
    if !out.IsAvailable {
        for _, r := range recs {
            if r.AvailableRooms < quantity {
                return nil, &InventoryUnavailableError{
                    RoomTypeID: roomTypeID,
                    Date:       r.Date,
                    Available:  r.AvailableRooms,
                    Requested:  quantity,
                }
            }
        }
    }
    return out, nil
}

func (s *InventoryService) availability(ctx context.Context, roomTypeID uint64, start, end time.Time, quantity int) (*Availability, []model.InventoryRecord, error) {
    start, end = utils.Day(start), utils.Day(end)
    if err := validateStay(start, end, s.today()); err != nil {
        return nil, nil, err
    }
    if quantity <= 0 {
        return nil, nil, fmt.Errorf("%w: number of rooms must be positive", ErrInvalidRequest)
    }

    dates := utils.DateRange(start, end)
    recs, err := s.store.ListInventory(ctx, roomTypeID, start, end)
    if err != nil {
        return nil, nil, fmt.Errorf("list inventory: %w", err)
    }
    if len(recs) != len(dates) {
        return nil, nil, missingInventory(dates, recs)
    }

    qty := decimal.NewFromInt(int64(quantity))
    out := &Availability{MinAvailable: recs[0].AvailableRooms, TotalPrice: decimal.Zero}
    for _, r := range recs {
        if r.AvailableRooms < out.MinAvailable {
            out.MinAvailable = r.AvailableRooms
        }
        out.TotalPrice = out.TotalPrice.Add(r.Price.Mul(qty))
    }
    out.IsAvailable = out.MinAvailable >= quantity
    return out, recs, nil
}

// missingInventory names the span of dates that have no record.
func missingInventory(dates []time.Time, recs []model.InventoryRecord) error {
    have := make(map[string]bool, len(recs))
    for _, r := range recs {
        have[utils.FormatDate(r.Date)] = true
    }
    var missing []string
    for _, d := range dates {
        if key := utils.FormatDate(d); !have[key] {
            missing = append(missing, key)
        }
    }
    if len(missing) == 0 {
        return fmt.Errorf("%w: inventory rows do not match requested dates", ErrInventoryNotFound)
    }
    return fmt.Errorf("%w: no inventory found for dates: %s to %s",
        ErrInventoryNotFound, missing[0], missing[len(missing)-1])
}

// Reserve deducts quantity rooms from every night of [start, end) inside
// sc and returns the summed price.  Rows are locked in ascending date
// order and re-checked under the lock.  On failure nothing is undone here;
// the caller's scope must roll back.
func (s *InventoryService) Reserve(ctx context.Context, sc store.Scope, roomTypeID uint64, start, end time.Time, quantity int) (_ decimal.Decimal, err error) {
    ctx, span := tracer.Start(ctx, "inventory.reserve", trace.WithAttributes(
        attribute.Int64("room_type.id", int64(roomTypeID)),
        attribute.Int("inventory.quantity", quantity),
    ))
    defer func() { endSpan(span, err) }()

    if quantity <= 0 {
        return decimal.Zero, fmt.Errorf("%w: number of rooms must be positive", ErrInvalidRequest)
    }
    dates := utils.DateRange(start, end)
    if len(dates) == 0 {
        return decimal.Zero, fmt.Errorf("%w: empty stay", ErrInvalidDateRange)
    }

    qty := decimal.NewFromInt(int64(quantity))
    total := decimal.Zero
    for _, d := range dates {
        rec, err := sc.LockInventory(ctx, roomTypeID, d)
        if errors.Is(err, store.ErrNotFound) {
            return decimal.Zero, fmt.Errorf("%w: no inventory found for room type %d on %s",
                ErrInventoryNotFound, roomTypeID, utils.FormatDate(d))
        }
        if err != nil {
            return decimal.Zero, fmt.Errorf("lock inventory %s: %w", utils.FormatDate(d), err)
        }
        if rec.AvailableRooms < quantity {
            return decimal.Zero, &InventoryUnavailableError{
                RoomTypeID: roomTypeID,
                Date:       d,
                Available:  rec.AvailableRooms,
                Requested:  quantity,
            }
        }
        left := rec.AvailableRooms - quantity
        if left < 0 {
            return decimal.Zero, fmt.Errorf("room type %d on %s: %w", roomTypeID, utils.FormatDate(d), errInventoryNegative)
        }
        if err := sc.SetAvailableRooms(ctx, roomTypeID, d, left); err != nil {
            return decimal.Zero, fmt.Errorf("update inventory %s: %w", utils.FormatDate(d), err)
        }
        total = total.Add(rec.Price.Mul(qty))
    }
    return total, nil
}

// stay is one room type held over [checkIn, checkOut).
type stay struct {
    roomTypeID        uint64
    checkIn, checkOut time.Time
}

// lockStays takes the inventory row locks of every night of every stay,
// ordered by room type ID and then date.  Reserve and Restore lock the same
// rows again re-entrantly, so a path that touches several stays acquires
// them in the same global order as a single ascending reservation.  Missing
// rows are skipped; Reserve or Restore reports them.
func lockStays(ctx context.Context, sc store.Scope, stays ...stay) error {
    type rowKey struct {
        roomTypeID uint64
        date       time.Time
    }
    seen := make(map[string]bool)
    var keys []rowKey
    for _, st := range stays {
        for _, d := range utils.DateRange(st.checkIn, st.checkOut) {
            id := roomTypeLabel(st.roomTypeID) + "/" + utils.FormatDate(d)
            if seen[id] {
                continue
            }
            seen[id] = true
            keys = append(keys, rowKey{roomTypeID: st.roomTypeID, date: d})
        }
    }
    sort.Slice(keys, func(i, j int) bool {
        if keys[i].roomTypeID != keys[j].roomTypeID {
            return keys[i].roomTypeID < keys[j].roomTypeID
        }
        return keys[i].date.Before(keys[j].date)
    })
    for _, k := range keys {
        _, err := sc.LockInventory(ctx, k.roomTypeID, k.date)
        if err != nil && !errors.Is(err, store.ErrNotFound) {
            return fmt.Errorf("lock inventory %s: %w", utils.FormatDate(k.date), err)
        }
    }
    return nil
}

// Restore gives quantity rooms back to every night of [start, end) inside
// sc.  It is not idempotent and does not clamp to the room type's
// capacity; callers invoke it exactly once per completed reservation.
func (s *InventoryService) Restore(ctx context.Context, sc store.Scope, roomTypeID uint64, start, end time.Time, quantity int) (err error) {
    ctx, span := tracer.Start(ctx, "inventory.restore", trace.WithAttributes(
        attribute.Int64("room_type.id", int64(roomTypeID)),
        attribute.Int("inventory.quantity", quantity),
    ))
    defer func() { endSpan(span, err) }()

    for _, d := range utils.DateRange(start, end) {
        rec, err := sc.LockInventory(ctx, roomTypeID, d)
        if errors.Is(err, store.ErrNotFound) {
            s.log.Error("inventory row missing during restore",
                zap.Uint64("room_type_id", roomTypeID), zap.String("date", utils.FormatDate(d)))
            return fmt.Errorf("%w: no inventory found for room type %d on %s",
                ErrInventoryRestore, roomTypeID, utils.FormatDate(d))
        }
        if err != nil {
            return fmt.Errorf("lock inventory %s: %w", utils.FormatDate(d), err)
        }
        if err := sc.SetAvailableRooms(ctx, roomTypeID, d, rec.AvailableRooms+quantity); err != nil {
            return fmt.Errorf("update inventory %s: %w", utils.FormatDate(d), err)
        }
    }
    return nil
}

// GenerateInventory creates the missing rows of the next days dates,
// starting today, with full capacity at the room type's base price.  It
// returns the number of rows created; an unknown room type creates none.
func (s *InventoryService) GenerateInventory(ctx context.Context, roomTypeID uint64, days int) (created int, err error) {
    started := time.Now()
    ctx, span := tracer.Start(ctx, "inventory.generate", trace.WithAttributes(
        attribute.Int64("room_type.id", int64(roomTypeID)),
    ))
    defer func() {
        endSpan(span, err)
        s.metrics.Observe("generate_inventory", outcome(err), started)
    }()

    if days <= 0 {
        days = s.DaysAhead
    }
    rt, err := s.store.GetRoomType(ctx, roomTypeID)
    if errors.Is(err, store.ErrNotFound) {
        return 0, nil
    }
    if err != nil {
        return 0, fmt.Errorf("get room type: %w", err)
    }

    dates := utils.FutureDates(s.today(), days)
    err = s.store.WithinScope(ctx, func(ctx context.Context, sc store.Scope) error {
        created = 0
        for _, d := range dates {
            ok, err := sc.InsertInventory(ctx, model.InventoryRecord{
                RoomTypeID:     rt.ID,
                Date:           d,
                AvailableRooms: rt.TotalRooms,
                Price:          rt.BasePrice,
            })
            if err != nil {
                return fmt.Errorf("insert inventory %s: %w", utils.FormatDate(d), err)
            }
            if ok {
                created++
            }
        }
        return nil
    })
    if err != nil {
        return 0, err
    }
    s.log.Info("inventory generated",
        zap.Uint64("room_type_id", rt.ID), zap.Int("days", days), zap.Int("created", created))
    return created, nil
}

// GenerateAllInventory runs GenerateInventory for every room type and
// returns the rows created per room type.
func (s *InventoryService) GenerateAllInventory(ctx context.Context, days int) (map[uint64]int, error) {
    rts, err := s.store.ListRoomTypes(ctx)
    if err != nil {
        return nil, fmt.Errorf("list room types: %w", err)
    }
    out := make(map[uint64]int, len(rts))
    for _, rt := range rts {
        n, err := s.GenerateInventory(ctx, rt.ID, days)
        if err != nil {
            return out, fmt.Errorf("room type %d: %w", rt.ID, err)
        }
        out[rt.ID] = n
    }
    return out, nil
}

// AvailabilitySummary returns a per-room-type calendar of [start, end).
// When roomTypeID is nil every room type is summarised; room types with no
// inventory in the range are omitted.  Output is ordered by room type ID.
func (s *InventoryService) AvailabilitySummary(ctx context.Context, start, end time.Time, roomTypeID *uint64) (_ []model.RoomTypeAvailability, err error) {
    ctx, span := tracer.Start(ctx, "inventory.availability_summary")
    defer func() { endSpan(span, err) }()

    start, end = utils.Day(start), utils.Day(end)
    if !end.After(start) {
        return nil, fmt.Errorf("%w: end date must be after start date", ErrInvalidDateRange)
    }

    var rts []model.RoomType
    if roomTypeID != nil {
        rt, err := s.store.GetRoomType(ctx, *roomTypeID)
        if errors.Is(err, store.ErrNotFound) {
            return nil, fmt.Errorf("%w: id %d", ErrRoomTypeNotFound, *roomTypeID)
        }
        if err != nil {
            return nil, fmt.Errorf("get room type: %w", err)
        }
        rts = []model.RoomType{*rt}
    } else {
        rts, err = s.store.ListRoomTypes(ctx)
        if err != nil {
            return nil, fmt.Errorf("list room types: %w", err)
        }
    }

    results := make([]*model.RoomTypeAvailability, len(rts))
    g, gctx := errgroup.WithContext(ctx)
    g.SetLimit(summaryConcurrency)
    for i, rt := range rts {
        g.Go(func() error {
            recs, err := s.store.ListInventory(gctx, rt.ID, start, end)
            if err != nil {
                return fmt.Errorf("room type %d: %w", rt.ID, err)
            }
            if len(recs) == 0 {
                return nil
            }
            sum := &model.RoomTypeAvailability{
                RoomTypeID:     rt.ID,
                RoomTypeName:   rt.Name,
                StartDate:      start,
                EndDate:        end,
                MinAvailable:   recs[0].AvailableRooms,
                TotalPrice:     decimal.Zero,
                DailyBreakdown: make([]model.DailyAvailability, 0, len(recs)),
            }
            for _, r := range recs {
                if r.AvailableRooms < sum.MinAvailable {
                    sum.MinAvailable = r.AvailableRooms
                }
                sum.TotalPrice = sum.TotalPrice.Add(r.Price)
                sum.DailyBreakdown = append(sum.DailyBreakdown, model.DailyAvailability{
                    Date:           r.Date,
                    AvailableRooms: r.AvailableRooms,
                    Price:          r.Price,
                })
            }
            results[i] = sum
            return nil
        })
    }
    if err := g.Wait(); err != nil {
        return nil, err
    }

    out := make([]model.RoomTypeAvailability, 0, len(results))
    for _, r := range results {
        if r != nil {
            out = append(out, *r)
        }
    }
    return out, nil
}

func outcome(err error) string {
    if err == nil {
        return "ok"
    }
    return Kind(err)
}
