package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/hotel-booking-engine/internal/database"
    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/store"
)

// Store is the MySQL implementation of store.Store.  Scopes are InnoDB
// transactions; row locks are SELECT ... FOR UPDATE and nested scopes are
// savepoints.
type Store struct {
    db        *sql.DB
    roomTypes *RoomTypeRepo
    inventory *InventoryRepo
    customers *CustomerRepo
    bookings  *BookingRepo
}

// NewStore builds the repos over db.
func NewStore(db *sql.DB) *Store {
    return &Store{
        db:        db,
        roomTypes: NewRoomTypeRepo(db),
        inventory: NewInventoryRepo(db),
        customers: NewCustomerRepo(db),
        bookings:  NewBookingRepo(db),
    }
}

var _ store.Store = (*Store)(nil)

func (s *Store) GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error) {
    return s.roomTypes.GetByID(ctx, id)
}

func (s *Store) ListRoomTypes(ctx context.Context) ([]model.RoomType, error) {
    return s.roomTypes.List(ctx)
}

func (s *Store) ListInventory(ctx context.Context, roomTypeID uint64, start, end time.Time) ([]model.InventoryRecord, error) {
    return s.inventory.ListRange(ctx, roomTypeID, start, end)
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
    return s.bookings.GetByID(ctx, id)
}

func (s *Store) ListBookings(ctx context.Context, f store.BookingFilter) ([]model.Booking, error) {
    return s.bookings.List(ctx, f)
}

func (s *Store) ListBookingItems(ctx context.Context, bookingID uint64) ([]model.BookingItem, error) {
    return s.bookings.ItemsByBooking(ctx, bookingID)
}

func (s *Store) GetCustomer(ctx context.Context, id uint64) (*model.Customer, error) {
    return s.customers.GetByID(ctx, id)
}

func (s *Store) WithinScope(ctx context.Context, fn func(ctx context.Context, sc store.Scope) error) error {
    return database.WithinTx(ctx, s.db, func(ctx context.Context, tx *database.Tx) error {
        return fn(ctx, &scope{s: s, tx: tx})
    })
}

// scope binds the repos to one open transaction.
type scope struct {
    s  *Store
    tx *database.Tx
}

func (sc *scope) Nested(ctx context.Context, fn func(ctx context.Context, sc store.Scope) error) error {
    return sc.tx.Savepoint(ctx, func(ctx context.Context) error {
        return fn(ctx, sc)
    })
}

func (sc *scope) LockInventory(ctx context.Context, roomTypeID uint64, date time.Time) (*model.InventoryRecord, error) {
    return sc.s.inventory.LockTx(ctx, sc.tx.Tx, roomTypeID, date)
}

func (sc *scope) SetAvailableRooms(ctx context.Context, roomTypeID uint64, date time.Time, available int) error {
    return sc.s.inventory.SetAvailableTx(ctx, sc.tx.Tx, roomTypeID, date, available)
}

func (sc *scope) InsertInventory(ctx context.Context, rec model.InventoryRecord) (bool, error) {
    return sc.s.inventory.InsertIfMissingTx(ctx, sc.tx.Tx, rec)
}

func (sc *scope) UpsertCustomer(ctx context.Context, c *model.Customer) error {
    return sc.s.customers.UpsertTx(ctx, sc.tx.Tx, c)
}

func (sc *scope) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
    return sc.s.bookings.LockTx(ctx, sc.tx.Tx, id)
}

func (sc *scope) InsertBooking(ctx context.Context, b *model.Booking) error {
    return sc.s.bookings.InsertTx(ctx, sc.tx.Tx, b)
}

func (sc *scope) InsertBookingItems(ctx context.Context, items []model.BookingItem) error {
    return sc.s.bookings.InsertItemsTx(ctx, sc.tx.Tx, items)
}

func (sc *scope) UpdateBooking(ctx context.Context, b *model.Booking) error {
    return sc.s.bookings.UpdateTx(ctx, sc.tx.Tx, b)
}

func (sc *scope) UpdateBookingItem(ctx context.Context, item model.BookingItem) error {
    return sc.s.bookings.UpdateItemTx(ctx, sc.tx.Tx, item)
}
