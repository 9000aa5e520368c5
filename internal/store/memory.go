package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iliyamo/hotel-booking-engine/internal/model"
	"github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// Memory is an in-process Store.  Committed data lives in maps guarded by an
// RWMutex; every scope buffers its writes and publishes them on commit.
// Inventory, booking and customer rows are protected by exclusive row locks
// that are held until the owning scope ends, mirroring InnoDB's
// SELECT ... FOR UPDATE.
type Memory struct {
	// LockWait bounds how long a scope waits for a row lock.  Zero waits
	// until the context is done.
	LockWait time.Duration
	// Now stamps created_at / updated_at.  Defaults to time.Now.
	Now func() time.Time

	mu        sync.RWMutex
	roomTypes map[uint64]model.RoomType
	inventory map[invKey]model.InventoryRecord
	customers map[uint64]model.Customer
	bookings  map[uint64]model.Booking
	items     map[uint64][]model.BookingItem

	ids   atomic.Uint64
	txIDs atomic.Uint64

	locksMu sync.Mutex
	locks   map[string]*rowLock
}

type invKey struct {
	roomTypeID uint64
	date       string
}

func keyOf(roomTypeID uint64, date time.Time) invKey {
	return invKey{roomTypeID: roomTypeID, date: utils.FormatDate(utils.Day(date))}
}

// rowLock is dropped from Memory.locks once no scope holds or waits for it.
type rowLock struct {
	ch    chan struct{}
	owner uint64
	refs  int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		roomTypes: make(map[uint64]model.RoomType),
		inventory: make(map[invKey]model.InventoryRecord),
		customers: make(map[uint64]model.Customer),
		bookings:  make(map[uint64]model.Booking),
		items:     make(map[uint64][]model.BookingItem),
		locks:     make(map[string]*rowLock),
	}
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// PutRoomType seeds or replaces a room type.  A zero ID is assigned.
func (m *Memory) PutRoomType(rt model.RoomType) model.RoomType {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt.ID == 0 {
		rt.ID = m.ids.Add(1)
	}
	m.roomTypes[rt.ID] = rt
	return rt
}

// PutInventory seeds or replaces an inventory record outside any scope.
func (m *Memory) PutInventory(rec model.InventoryRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Date = utils.Day(rec.Date)
	m.inventory[keyOf(rec.RoomTypeID, rec.Date)] = rec
}

func (m *Memory) GetRoomType(_ context.Context, id uint64) (*model.RoomType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.roomTypes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rt, nil
}

func (m *Memory) ListRoomTypes(_ context.Context) ([]model.RoomType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RoomType, 0, len(m.roomTypes))
	for _, rt := range m.roomTypes {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListInventory(_ context.Context, roomTypeID uint64, start, end time.Time) ([]model.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.InventoryRecord
	for _, d := range utils.DateRange(start, end) {
		if rec, ok := m.inventory[keyOf(roomTypeID, d)]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) GetBooking(_ context.Context, id uint64) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *Memory) ListBookings(_ context.Context, f BookingFilter) ([]model.Booking, error) {
	m.mu.RLock()
	out := make([]model.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.FromDate != nil && b.CheckIn.Before(utils.Day(*f.FromDate)) {
			continue
		}
		if f.ToDate != nil && b.CheckIn.After(utils.Day(*f.ToDate)) {
			continue
		}
		out = append(out, b)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []model.Booking{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ListBookingItems(_ context.Context, bookingID uint64) ([]model.BookingItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.BookingItem(nil), m.items[bookingID]...), nil
}

func (m *Memory) GetCustomer(_ context.Context, id uint64) (*model.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) WithinScope(ctx context.Context, fn func(ctx context.Context, sc Scope) error) error {
	sc := &memScope{m: m, id: m.txIDs.Add(1), pending: newPending()}
	defer sc.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, sc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.commit(sc.pending)
	return nil
}

func (m *Memory) commit(p *pending) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rec := range p.inventory {
		m.inventory[k] = rec
	}
	for id, c := range p.customers {
		m.customers[id] = c
	}
	for id, b := range p.bookings {
		m.bookings[id] = b
	}
	for id, items := range p.items {
		m.items[id] = items
	}
}

// acquire blocks until owner holds the lock on key.  memScope.lock makes
// locks re-entrant, so acquire is called once per scope and key.
func (m *Memory) acquire(ctx context.Context, owner uint64, key string) error {
	m.locksMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.locksMu.Unlock()

	var timeout <-chan time.Time
	if m.LockWait > 0 {
		t := time.NewTimer(m.LockWait)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case l.ch <- struct{}{}:
		m.locksMu.Lock()
		l.owner = owner
		m.locksMu.Unlock()
		return nil
	case <-ctx.Done():
		m.unref(key, l)
		return ctx.Err()
	case <-timeout:
		m.unref(key, l)
		return fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

func (m *Memory) releaseLock(key string) {
	m.locksMu.Lock()
	l := m.locks[key]
	l.owner = 0
	m.locksMu.Unlock()
	<-l.ch
	m.unref(key, l)
}

// unref drops one holder or waiter of l and forgets l when none are left.
func (m *Memory) unref(key string, l *rowLock) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l.refs--
	if l.refs == 0 && m.locks[key] == l {
		delete(m.locks, key)
	}
}

// pending is the write buffer of one scope.
type pending struct {
	inventory map[invKey]model.InventoryRecord
	customers map[uint64]model.Customer
	bookings  map[uint64]model.Booking
	items     map[uint64][]model.BookingItem
}

func newPending() *pending {
	return &pending{
		inventory: make(map[invKey]model.InventoryRecord),
		customers: make(map[uint64]model.Customer),
		bookings:  make(map[uint64]model.Booking),
		items:     make(map[uint64][]model.BookingItem),
	}
}

func (p *pending) clone() *pending {
	c := newPending()
	for k, v := range p.inventory {
		c.inventory[k] = v
	}
	for k, v := range p.customers {
		c.customers[k] = v
	}
	for k, v := range p.bookings {
		c.bookings[k] = v
	}
	for k, v := range p.items {
		c.items[k] = append([]model.BookingItem(nil), v...)
	}
	return c
}

type memScope struct {
	m       *Memory
	id      uint64
	pending *pending
	held    []string
}

func (s *memScope) release() {
	for i := len(s.held) - 1; i >= 0; i-- {
		s.m.releaseLock(s.held[i])
	}
	s.held = nil
}

func (s *memScope) lock(ctx context.Context, key string) error {
	for _, k := range s.held {
		if k == key {
			return nil
		}
	}
	if err := s.m.acquire(ctx, s.id, key); err != nil {
		return err
	}
	s.held = append(s.held, key)
	return nil
}

// Nested snapshots the write buffer and restores it when fn fails.
func (s *memScope) Nested(ctx context.Context, fn func(ctx context.Context, sc Scope) error) error {
	snapshot := s.pending.clone()
	if err := fn(ctx, s); err != nil {
		*s.pending = *snapshot
		return err
	}
	return nil
}

func (s *memScope) inventoryRow(k invKey) (model.InventoryRecord, bool) {
	if rec, ok := s.pending.inventory[k]; ok {
		return rec, true
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	rec, ok := s.m.inventory[k]
	return rec, ok
}

func inventoryLockKey(k invKey) string {
	return fmt.Sprintf("inventory:%d:%s", k.roomTypeID, k.date)
}

func (s *memScope) LockInventory(ctx context.Context, roomTypeID uint64, date time.Time) (*model.InventoryRecord, error) {
	k := keyOf(roomTypeID, date)
	if err := s.lock(ctx, inventoryLockKey(k)); err != nil {
		return nil, err
	}
	rec, ok := s.inventoryRow(k)
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *memScope) SetAvailableRooms(ctx context.Context, roomTypeID uint64, date time.Time, available int) error {
	k := keyOf(roomTypeID, date)
	if err := s.lock(ctx, inventoryLockKey(k)); err != nil {
		return err
	}
	rec, ok := s.inventoryRow(k)
	if !ok {
		return ErrNotFound
	}
	rec.AvailableRooms = available
	s.pending.inventory[k] = rec
	return nil
}

func (s *memScope) InsertInventory(ctx context.Context, rec model.InventoryRecord) (bool, error) {
	rec.Date = utils.Day(rec.Date)
	k := keyOf(rec.RoomTypeID, rec.Date)
	if err := s.lock(ctx, inventoryLockKey(k)); err != nil {
		return false, err
	}
	if _, ok := s.inventoryRow(k); ok {
		return false, nil
	}
	s.pending.inventory[k] = rec
	return true, nil
}

func (s *memScope) UpsertCustomer(ctx context.Context, c *model.Customer) error {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if err := s.lock(ctx, "customer:"+email); err != nil {
		return err
	}
	existing, ok := s.customerByEmail(email)
	now := s.m.now()
	if !ok {
		c.ID = s.m.ids.Add(1)
		c.Email = email
		c.CreatedAt, c.UpdatedAt = now, now
		s.pending.customers[c.ID] = *c
		return nil
	}
	existing.Name = c.Name
	if c.Phone != "" {
		existing.Phone = c.Phone
	}
	if c.Address != "" {
		existing.Address = c.Address
	}
	if c.IDProofType != "" {
		existing.IDProofType = c.IDProofType
	}
	if c.IDProofNumber != "" {
		existing.IDProofNumber = c.IDProofNumber
	}
	existing.UpdatedAt = now
	s.pending.customers[existing.ID] = existing
	*c = existing
	return nil
}

func (s *memScope) customerByEmail(email string) (model.Customer, bool) {
	for _, c := range s.pending.customers {
		if c.Email == email {
			return c, true
		}
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, c := range s.m.customers {
		if c.Email == email {
			return c, true
		}
	}
	return model.Customer{}, false
}

func (s *memScope) bookingRow(id uint64) (model.Booking, bool) {
	if b, ok := s.pending.bookings[id]; ok {
		return b, true
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	b, ok := s.m.bookings[id]
	return b, ok
}

func bookingLockKey(id uint64) string { return fmt.Sprintf("booking:%d", id) }

func (s *memScope) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	if err := s.lock(ctx, bookingLockKey(id)); err != nil {
		return nil, err
	}
	b, ok := s.bookingRow(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *memScope) InsertBooking(ctx context.Context, b *model.Booking) error {
	b.ID = s.m.ids.Add(1)
	if err := s.lock(ctx, bookingLockKey(b.ID)); err != nil {
		return err
	}
	now := s.m.now()
	b.CreatedAt, b.UpdatedAt = now, now
	s.pending.bookings[b.ID] = *b
	return nil
}

func (s *memScope) InsertBookingItems(_ context.Context, items []model.BookingItem) error {
	for i := range items {
		if _, ok := s.bookingRow(items[i].BookingID); !ok {
			return fmt.Errorf("booking item references booking %d: %w", items[i].BookingID, ErrNotFound)
		}
	}
	for i := range items {
		items[i].ID = s.m.ids.Add(1)
		bid := items[i].BookingID
		list, ok := s.pending.items[bid]
		if !ok {
			s.m.mu.RLock()
			list = append([]model.BookingItem(nil), s.m.items[bid]...)
			s.m.mu.RUnlock()
		}
		s.pending.items[bid] = append(list, items[i])
	}
	return nil
}

func (s *memScope) UpdateBooking(ctx context.Context, b *model.Booking) error {
	if err := s.lock(ctx, bookingLockKey(b.ID)); err != nil {
		return err
	}
	if _, ok := s.bookingRow(b.ID); !ok {
		return ErrNotFound
	}
	b.UpdatedAt = s.m.now()
	s.pending.bookings[b.ID] = *b
	return nil
}

func (s *memScope) UpdateBookingItem(ctx context.Context, item model.BookingItem) error {
	if err := s.lock(ctx, bookingLockKey(item.BookingID)); err != nil {
		return err
	}
	list, ok := s.pending.items[item.BookingID]
	if !ok {
		s.m.mu.RLock()
		list = append([]model.BookingItem(nil), s.m.items[item.BookingID]...)
		s.m.mu.RUnlock()
	}
	for i := range list {
		if list[i].ID == item.ID {
			list[i] = item
			s.pending.items[item.BookingID] = list
			return nil
		}
	}
	return ErrNotFound
}
