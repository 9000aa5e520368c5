package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/store"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// BookingRepo provides access to the bookings and booking_items tables.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, customer_id, room_type_id, check_in, check_out, num_rooms,
    total_amount, amount_paid, status, notes, created_at, updated_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
    var b model.Booking
    err := row.Scan(&b.ID, &b.CustomerID, &b.RoomTypeID, &b.CheckIn, &b.CheckOut, &b.NumRooms,
        &b.TotalAmount, &b.AmountPaid, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt)
    if err != nil {
        return nil, translate(err)
    }
    b.CheckIn, b.CheckOut = utils.Day(b.CheckIn), utils.Day(b.CheckOut)
    return &b, nil
}

// GetByID returns the booking or store.ErrNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
    return scanBooking(r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ? LIMIT 1`, id))
}

// LockTx selects the booking FOR UPDATE.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
    return scanBooking(tx.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
}

// List returns bookings matching f, newest first.
func (r *BookingRepo) List(ctx context.Context, f store.BookingFilter) ([]model.Booking, error) {
    var (
        where []string
        args  []any
    )
    if f.Status != "" {
        where = append(where, "status = ?")
        args = append(args, string(f.Status))
    }
    if f.FromDate != nil {
        where = append(where, "check_in >= ?")
        args = append(args, utils.FormatDate(*f.FromDate))
    }
    if f.ToDate != nil {
        where = append(where, "check_in <= ?")
        args = append(args, utils.FormatDate(*f.ToDate))
    }
    q := `SELECT ` + bookingColumns + ` FROM bookings`
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, " AND ")
    }
    q += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
    limit := f.Limit
    if limit <= 0 {
        limit = 100
    }
    args = append(args, limit, f.Offset)

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Booking{}
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    return out, rows.Err()
}

// InsertTx inserts a booking and assigns its ID and timestamps.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    now := time.Now().UTC()
    res, err := tx.ExecContext(ctx,
        `INSERT INTO bookings (customer_id, room_type_id, check_in, check_out, num_rooms,
             total_amount, amount_paid, status, notes, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        b.CustomerID, b.RoomTypeID, utils.FormatDate(b.CheckIn), utils.FormatDate(b.CheckOut), b.NumRooms,
        b.TotalAmount, b.AmountPaid, string(b.Status), b.Notes, now, now,
    )
    if err != nil {
        return translate(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    b.CreatedAt, b.UpdatedAt = now, now
    return nil
}

// UpdateTx rewrites the mutable columns of a locked booking.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    now := time.Now().UTC()
    res, err := tx.ExecContext(ctx,
        `UPDATE bookings
         SET room_type_id = ?, check_in = ?, check_out = ?, num_rooms = ?,
             total_amount = ?, amount_paid = ?, status = ?, notes = ?, updated_at = ?
         WHERE id = ?`,
        b.RoomTypeID, utils.FormatDate(b.CheckIn), utils.FormatDate(b.CheckOut), b.NumRooms,
        b.TotalAmount, b.AmountPaid, string(b.Status), b.Notes, now, b.ID,
    )
    if err != nil {
        return translate(err)
    }
    if n, err := res.RowsAffected(); err == nil && n == 0 {
        return store.ErrNotFound
    }
    b.UpdatedAt = now
    return nil
}

// ItemsByBooking returns the items of a booking in insertion order.
func (r *BookingRepo) ItemsByBooking(ctx context.Context, bookingID uint64) ([]model.BookingItem, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT id, booking_id, room_type_id, quantity, price_per_night
         FROM booking_items WHERE booking_id = ? ORDER BY id`, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.BookingItem{}
    for rows.Next() {
        var it model.BookingItem
        if err := rows.Scan(&it.ID, &it.BookingID, &it.RoomTypeID, &it.Quantity, &it.PricePerNight); err != nil {
            return nil, err
        }
        out = append(out, it)
    }
    return out, rows.Err()
}

// InsertItemsTx inserts items one by one so each gets its own ID.
func (r *BookingRepo) InsertItemsTx(ctx context.Context, tx *sql.Tx, items []model.BookingItem) error {
    for i := range items {
        res, err := tx.ExecContext(ctx,
            `INSERT INTO booking_items (booking_id, room_type_id, quantity, price_per_night) VALUES (?, ?, ?, ?)`,
            items[i].BookingID, items[i].RoomTypeID, items[i].Quantity, items[i].PricePerNight,
        )
        if err != nil {
            return translate(err)
        }
        id, err := res.LastInsertId()
        if err != nil {
            return err
        }
        items[i].ID = uint64(id)
    }
    return nil
}

// UpdateItemTx rewrites room type, quantity and price of an item.
func (r *BookingRepo) UpdateItemTx(ctx context.Context, tx *sql.Tx, it model.BookingItem) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE booking_items SET room_type_id = ?, quantity = ?, price_per_night = ? WHERE id = ? AND booking_id = ?`,
        it.RoomTypeID, it.Quantity, it.PricePerNight, it.ID, it.BookingID,
    )
    return translate(err)
}
