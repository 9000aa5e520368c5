package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/store"
)

// today is the fixed calendar date every test runs on.
var today = time.Date(2030, time.March, 10, 0, 0, 0, 0, time.UTC)

// day returns today shifted by n days.
func day(n int) time.Time { return today.AddDate(0, 0, n) }

type fixture struct {
	t         *testing.T
	ctx       context.Context
	st        *store.Memory
	inventory *InventoryService
	bookings  *BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	st.LockWait = 2 * time.Second
	inv := NewInventoryService(st, nil, nil)
	inv.now = func() time.Time { return today.Add(9 * time.Hour) }
	return &fixture{
		t:         t,
		ctx:       context.Background(),
		st:        st,
		inventory: inv,
		bookings:  NewBookingService(st, inv, nil, nil),
	}
}

// roomType seeds a room type with days of generated inventory from today.
func (f *fixture) roomType(name string, total int, price int64, days int) model.RoomType {
	f.t.Helper()
	rt := f.st.PutRoomType(model.RoomType{Name: name, TotalRooms: total, BasePrice: decimal.NewFromInt(price)})
	if days > 0 {
		n, err := f.inventory.GenerateInventory(f.ctx, rt.ID, days)
		if err != nil || n != days {
			f.t.Fatalf("GenerateInventory = %d, %v", n, err)
		}
	}
	return rt
}

func (f *fixture) setAvailable(rt model.RoomType, d time.Time, available int) {
	f.st.PutInventory(model.InventoryRecord{RoomTypeID: rt.ID, Date: d, AvailableRooms: available, Price: rt.BasePrice})
}

func (f *fixture) available(roomTypeID uint64, d time.Time) int {
	f.t.Helper()
	recs, err := f.st.ListInventory(f.ctx, roomTypeID, d, d.AddDate(0, 0, 1))
	if err != nil || len(recs) != 1 {
		f.t.Fatalf("no inventory for room type %d on %s: %v", roomTypeID, d.Format("2006-01-02"), err)
	}
	return recs[0].AvailableRooms
}

// assertAvailable checks the availability of every night in [from, to).
func (f *fixture) assertAvailable(roomTypeID uint64, from, to time.Time, want int) {
	f.t.Helper()
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		if got := f.available(roomTypeID, d); got != want {
			f.t.Errorf("room type %d on %s: available = %d, want %d", roomTypeID, d.Format("2006-01-02"), got, want)
		}
	}
}

func guest(email string) CustomerInfo {
	return CustomerInfo{Name: "Guest", Email: email}
}

func (f *fixture) book(rt model.RoomType, from, to time.Time, rooms int) *model.Booking {
	f.t.Helper()
	b, err := f.bookings.CreateBooking(f.ctx, CreateBookingInput{
		Customer:   guest("guest@example.com"),
		RoomTypeID: rt.ID,
		CheckIn:    from,
		CheckOut:   to,
		NumRooms:   rooms,
	})
	if err != nil {
		f.t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

// staleStore serves advisory reads that claim every room is free, so a
// request passes the pre-check and is only stopped by the locked re-check.
type staleStore struct {
	*store.Memory
}

func (s staleStore) ListInventory(ctx context.Context, roomTypeID uint64, start, end time.Time) ([]model.InventoryRecord, error) {
	recs, err := s.Memory.ListInventory(ctx, roomTypeID, start, end)
	for i := range recs {
		recs[i].AvailableRooms = 1000
	}
	return recs, err
}

// withStaleReads rebuilds the services over a staleStore sharing f's data.
func (f *fixture) withStaleReads() {
	st := staleStore{f.st}
	inv := NewInventoryService(st, nil, nil)
	inv.now = f.inventory.now
	f.inventory = inv
	f.bookings = NewBookingService(st, inv, nil, nil)
}
