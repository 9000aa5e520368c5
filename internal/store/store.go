// Package store defines the persistence contracts the booking engine runs
// against: read-only lookups that never lock, and Scopes, the atomic unit of
// work inside which inventory rows are locked and mutated.
//
// Two engines implement the contracts: the MySQL engine in
// internal/repository (SELECT ... FOR UPDATE and SAVEPOINTs) and the
// in-memory engine in this package, which provides the same per-row
// exclusive locking semantics for tests and local development.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/hotel-booking-engine/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrLockTimeout is returned when a row lock could not be acquired
	// before the engine's lock wait timeout, or when the engine aborted the
	// caller to break a deadlock.  The enclosing scope is rolled back.
	ErrLockTimeout = errors.New("store: lock wait timeout")

	// ErrEmailExists is returned when a staff account email is taken.
	ErrEmailExists = errors.New("store: email already exists")
)

// BookingFilter narrows ListBookings.  Zero values mean "no filter".
type BookingFilter struct {
	Status   model.BookingStatus
	FromDate *time.Time // check_in >= FromDate
	ToDate   *time.Time // check_in <= ToDate
	Limit    int
	Offset   int
}

// Store is the handle a process holds for the lifetime of the application.
// Reads through Store take no locks and may observe data that a concurrent
// scope is about to change.
type Store interface {
	GetRoomType(ctx context.Context, id uint64) (*model.RoomType, error)
	ListRoomTypes(ctx context.Context) ([]model.RoomType, error)
	// ListInventory returns the records of a room type in [start, end),
	// ordered by date.  Missing dates are simply absent.
	ListInventory(ctx context.Context, roomTypeID uint64, start, end time.Time) ([]model.InventoryRecord, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	ListBookingItems(ctx context.Context, bookingID uint64) ([]model.BookingItem, error)
	GetCustomer(ctx context.Context, id uint64) (*model.Customer, error)

	// WithinScope runs fn inside a new top-level scope.  The scope commits
	// when fn returns nil and rolls back otherwise, including when ctx is
	// cancelled before commit.  Row locks are held until the scope ends.
	WithinScope(ctx context.Context, fn func(ctx context.Context, sc Scope) error) error
}

// Scope is an open unit of work.  Every mutation of inventory, customers and
// bookings happens through a Scope.
type Scope interface {
	// Nested runs fn inside a savepoint.  When fn fails, its writes are
	// discarded and the error is returned to the enclosing scope, which
	// decides whether to roll back entirely.  Locks taken inside the
	// savepoint stay held.
	Nested(ctx context.Context, fn func(ctx context.Context, sc Scope) error) error

	// LockInventory takes an exclusive lock on the (room type, date) row,
	// blocking until it is available, and returns the row as seen under the
	// lock.  ErrNotFound when the row does not exist.
	LockInventory(ctx context.Context, roomTypeID uint64, date time.Time) (*model.InventoryRecord, error)
	// SetAvailableRooms overwrites available_rooms on a row previously
	// locked by this scope.
	SetAvailableRooms(ctx context.Context, roomTypeID uint64, date time.Time, available int) error
	// InsertInventory creates the row unless one already exists for the
	// same (room type, date); it reports whether a row was created.
	InsertInventory(ctx context.Context, rec model.InventoryRecord) (bool, error)

	// UpsertCustomer inserts a customer keyed by email or updates the
	// existing one: Name is always overwritten, optional fields only when
	// non-empty.  c is updated in place with the stored row.
	UpsertCustomer(ctx context.Context, c *model.Customer) error

	// LockBooking takes an exclusive lock on a booking row.
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	// InsertBooking assigns b.ID and timestamps.
	InsertBooking(ctx context.Context, b *model.Booking) error
	// InsertBookingItems assigns item IDs in place.
	InsertBookingItems(ctx context.Context, items []model.BookingItem) error
	UpdateBooking(ctx context.Context, b *model.Booking) error
	// UpdateBookingItem rewrites room type, quantity and price of an item
	// whose booking is locked by this scope.
	UpdateBookingItem(ctx context.Context, item model.BookingItem) error
}
