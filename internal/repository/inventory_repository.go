package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/hotel-booking-engine/internal/model"
    "github.com/iliyamo/hotel-booking-engine/internal/utils"
)

// InventoryRepo provides access to the inventory table, one row per
// (room_type_id, date).  Capacity changes must go through LockTx followed
// by SetAvailableTx in the same transaction.
type InventoryRepo struct {
    db *sql.DB
}

// NewInventoryRepo returns an InventoryRepo bound to db.
func NewInventoryRepo(db *sql.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// ListRange returns the rows of a room type for dates in [start, end)
// without locking them.
func (r *InventoryRepo) ListRange(ctx context.Context, roomTypeID uint64, start, end time.Time) ([]model.InventoryRecord, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT room_type_id, date, available_rooms, price
         FROM inventory
         WHERE room_type_id = ? AND date >= ? AND date < ?
         ORDER BY date`,
        roomTypeID, utils.FormatDate(start), utils.FormatDate(end),
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.InventoryRecord
    for rows.Next() {
        var rec model.InventoryRecord
        if err := rows.Scan(&rec.RoomTypeID, &rec.Date, &rec.AvailableRooms, &rec.Price); err != nil {
            return nil, err
        }
        rec.Date = utils.Day(rec.Date)
        out = append(out, rec)
    }
    return out, rows.Err()
}

// LockTx selects one row FOR UPDATE, blocking until any other transaction
// holding it ends.  store.ErrNotFound when the row does not exist.
func (r *InventoryRepo) LockTx(ctx context.Context, tx *sql.Tx, roomTypeID uint64, date time.Time) (*model.InventoryRecord, error) {
    var rec model.InventoryRecord
    err := tx.QueryRowContext(ctx,
        `SELECT room_type_id, date, available_rooms, price
         FROM inventory
         WHERE room_type_id = ? AND date = ?
         FOR UPDATE`,
        roomTypeID, utils.FormatDate(date),
    ).Scan(&rec.RoomTypeID, &rec.Date, &rec.AvailableRooms, &rec.Price)
    if err != nil {
        return nil, translate(err)
    }
    rec.Date = utils.Day(rec.Date)
    return &rec, nil
}

// SetAvailableTx overwrites available_rooms on a locked row.
func (r *InventoryRepo) SetAvailableTx(ctx context.Context, tx *sql.Tx, roomTypeID uint64, date time.Time, available int) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE inventory SET available_rooms = ? WHERE room_type_id = ? AND date = ?`,
        available, roomTypeID, utils.FormatDate(date),
    )
    if err != nil {
        return translate(err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // zero rows also when the value is unchanged; confirm existence
        var one int
        err := tx.QueryRowContext(ctx,
            `SELECT 1 FROM inventory WHERE room_type_id = ? AND date = ?`,
            roomTypeID, utils.FormatDate(date),
        ).Scan(&one)
        if err != nil {
            return translate(err)
        }
    }
    return nil
}

// InsertIfMissingTx inserts the row unless (room_type_id, date) already
// exists and reports whether it inserted.
func (r *InventoryRepo) InsertIfMissingTx(ctx context.Context, tx *sql.Tx, rec model.InventoryRecord) (bool, error) {
    res, err := tx.ExecContext(ctx,
        `INSERT INTO inventory (room_type_id, date, available_rooms, price)
         VALUES (?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE room_type_id = room_type_id`,
        rec.RoomTypeID, utils.FormatDate(rec.Date), rec.AvailableRooms, rec.Price,
    )
    if err != nil {
        return false, translate(err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}
