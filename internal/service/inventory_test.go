package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-booking-engine/internal/store"
)

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 120, 10)
	f.setAvailable(rt, day(2), 2)

	got, err := f.inventory.CheckAvailability(f.ctx, rt.ID, day(1), day(4), 3)
	if err != nil {
		t.Fatalf("CheckAvailability: %v", err)
	}
	if got.IsAvailable {
		t.Errorf("IsAvailable = true, want false")
	}
	if got.MinAvailable != 2 {
		t.Errorf("MinAvailable = %d, want 2", got.MinAvailable)
	}
	if want := decimal.NewFromInt(120 * 3 * 3); !got.TotalPrice.Equal(want) {
		t.Errorf("TotalPrice = %s, want %s", got.TotalPrice, want)
	}

	got, err = f.inventory.CheckAvailability(f.ctx, rt.ID, day(1), day(4), 2)
	if err != nil || !got.IsAvailable {
		t.Fatalf("CheckAvailability(2) = %+v, %v", got, err)
	}
}

func TestCheckAvailabilityRejectsBadRanges(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 120, 10)

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"end equals start", day(1), day(1)},
		{"end before start", day(3), day(1)},
		{"start in the past", day(-1), day(2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.inventory.CheckAvailability(f.ctx, rt.ID, tc.start, tc.end, 1)
			if !errors.Is(err, ErrInvalidDateRange) {
				t.Fatalf("err = %v, want ErrInvalidDateRange", err)
			}
		})
	}
}

func TestCheckAvailabilityNamesMissingSpan(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 120, 3)

	_, err := f.inventory.CheckAvailability(f.ctx, rt.ID, day(1), day(6), 1)
	if !errors.Is(err, ErrInventoryNotFound) {
		t.Fatalf("err = %v, want ErrInventoryNotFound", err)
	}
	want := day(3).Format("2006-01-02") + " to " + day(5).Format("2006-01-02")
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("err = %q, want it to name %q", err, want)
	}
}

func TestReserveRestoreRoundTrip(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 100, 10)

	var total decimal.Decimal
	err := f.st.WithinScope(f.ctx, func(ctx context.Context, sc store.Scope) error {
		var err error
		total, err = f.inventory.Reserve(ctx, sc, rt.ID, day(1), day(4), 2)
		return err
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if !total.Equal(decimal.NewFromInt(600)) {
		t.Errorf("total = %s, want 600", total)
	}
	f.assertAvailable(rt.ID, day(1), day(4), 3)
	f.assertAvailable(rt.ID, day(4), day(5), 5)

	err = f.st.WithinScope(f.ctx, func(ctx context.Context, sc store.Scope) error {
		return f.inventory.Restore(ctx, sc, rt.ID, day(1), day(4), 2)
	})
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	f.assertAvailable(rt.ID, day(1), day(4), 5)
}

func TestRestoreIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 100, 10)

	reserveThenRestore := func(restores int) error {
		return f.st.WithinScope(f.ctx, func(ctx context.Context, sc store.Scope) error {
			if _, err := f.inventory.Reserve(ctx, sc, rt.ID, day(1), day(3), 2); err != nil {
				return err
			}
			for i := 0; i < restores; i++ {
				if err := f.inventory.Restore(ctx, sc, rt.ID, day(1), day(3), 2); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := reserveThenRestore(2); err != nil {
		t.Fatal(err)
	}
	// the second restore over-credits past total capacity
	f.assertAvailable(rt.ID, day(1), day(3), 7)
}

func TestReserveFailureLeavesEarlierDatesToScope(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 100, 10)
	f.setAvailable(rt, day(3), 1)

	err := f.st.WithinScope(f.ctx, func(ctx context.Context, sc store.Scope) error {
		_, err := f.inventory.Reserve(ctx, sc, rt.ID, day(1), day(4), 2)
		return err
	})
	var unavailable *InventoryUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want *InventoryUnavailableError", err)
	}
	if !errors.Is(err, ErrInventoryUnavailable) {
		t.Errorf("errors.Is(err, ErrInventoryUnavailable) = false")
	}
	if !unavailable.Date.Equal(day(3)) || unavailable.Available != 1 || unavailable.Requested != 2 {
		t.Errorf("unavailable = %+v", unavailable)
	}
	f.assertAvailable(rt.ID, day(1), day(3), 5)
	f.assertAvailable(rt.ID, day(3), day(4), 1)
}

func TestReserveMissingRow(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 100, 2)

	err := f.st.WithinScope(f.ctx, func(ctx context.Context, sc store.Scope) error {
		_, err := f.inventory.Reserve(ctx, sc, rt.ID, day(0), day(3), 1)
		return err
	})
	if !errors.Is(err, ErrInventoryNotFound) {
		t.Fatalf("err = %v, want ErrInventoryNotFound", err)
	}
	f.assertAvailable(rt.ID, day(0), day(2), 5)
}

func TestRestoreMissingRowIsFatal(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Deluxe", 5, 100, 2)
	f.setAvailable(rt, day(0), 3)

	err := f.st.WithinScope(f.ctx, func(ctx context.Context, sc store.Scope) error {
		return f.inventory.Restore(ctx, sc, rt.ID, day(0), day(3), 1)
	})
	if !errors.Is(err, ErrInventoryRestore) {
		t.Fatalf("err = %v, want ErrInventoryRestore", err)
	}
	if Kind(err) != "INVENTORY_RESTORE_ERROR" {
		t.Errorf("Kind = %s", Kind(err))
	}
	if got := f.available(rt.ID, day(0)); got != 3 {
		t.Fatalf("available = %d, want 3 after rollback", got)
	}
}

func TestGenerateInventorySkipsExisting(t *testing.T) {
	f := newFixture(t)
	rt := f.roomType("Suite", 4, 300, 5)
	f.setAvailable(rt, day(1), 1)

	n, err := f.inventory.GenerateInventory(f.ctx, rt.ID, 8)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("created = %d, want 3", n)
	}
	if got := f.available(rt.ID, day(1)); got != 1 {
		t.Errorf("existing row overwritten: available = %d", got)
	}
	f.assertAvailable(rt.ID, day(5), day(8), 4)
}

func TestGenerateInventoryUnknownRoomType(t *testing.T) {
	f := newFixture(t)
	n, err := f.inventory.GenerateInventory(f.ctx, 999, 10)
	if err != nil || n != 0 {
		t.Fatalf("GenerateInventory = %d, %v; want 0, nil", n, err)
	}
}

func TestGenerateAllInventoryUsesDefaultHorizon(t *testing.T) {
	f := newFixture(t)
	f.inventory.DaysAhead = 7
	a := f.roomType("A", 2, 50, 0)
	b := f.roomType("B", 3, 80, 0)

	got, err := f.inventory.GenerateAllInventory(f.ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got[a.ID] != 7 || got[b.ID] != 7 {
		t.Fatalf("created = %v", got)
	}
	f.assertAvailable(b.ID, day(0), day(7), 3)
}

func TestAvailabilitySummary(t *testing.T) {
	f := newFixture(t)
	a := f.roomType("Standard", 10, 80, 5)
	b := f.roomType("Suite", 2, 300, 5)
	f.roomType("Closed", 1, 10, 0)
	f.setAvailable(b, day(1), 0)

	got, err := f.inventory.AvailabilitySummary(f.ctx, day(0), day(3), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("summaries = %d, want 2 (room type without inventory omitted)", len(got))
	}
	if got[0].RoomTypeID != a.ID || got[1].RoomTypeID != b.ID {
		t.Fatalf("order = %d, %d", got[0].RoomTypeID, got[1].RoomTypeID)
	}
	if got[1].MinAvailable != 0 || len(got[1].DailyBreakdown) != 3 {
		t.Errorf("suite summary = %+v", got[1])
	}
	if !got[0].TotalPrice.Equal(decimal.NewFromInt(240)) {
		t.Errorf("standard total = %s, want 240", got[0].TotalPrice)
	}

	id := b.ID
	one, err := f.inventory.AvailabilitySummary(f.ctx, day(0), day(3), &id)
	if err != nil || len(one) != 1 || one[0].RoomTypeID != b.ID {
		t.Fatalf("single summary = %+v, %v", one, err)
	}

	missing := uint64(404)
	if _, err := f.inventory.AvailabilitySummary(f.ctx, day(0), day(3), &missing); !errors.Is(err, ErrRoomTypeNotFound) {
		t.Fatalf("err = %v, want ErrRoomTypeNotFound", err)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidDateRange, "INVALID_DATE_RANGE"},
		{&InventoryUnavailableError{Date: day(0), Available: 0, Requested: 1}, "INVENTORY_UNAVAILABLE"},
		{errors.Join(errors.New("ctx"), ErrBookingNotFound), "BOOKING_NOT_FOUND"},
		{store.ErrLockTimeout, "LOCK_TIMEOUT"},
		{errors.New("disk on fire"), "INTERNAL"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestInventoryUnavailableMessage(t *testing.T) {
	err := &InventoryUnavailableError{RoomTypeID: 1, Date: day(2), Available: 1, Requested: 3}
	want := "only 1 room(s) available on 2030-03-12, requested 3"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
