package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/hotel-booking-engine/internal/model"
)

// RoomTypeRepo reads the room_types table.  The booking engine never
// writes room types.
type RoomTypeRepo struct {
    db *sql.DB
}

// NewRoomTypeRepo returns a RoomTypeRepo bound to db.
func NewRoomTypeRepo(db *sql.DB) *RoomTypeRepo { return &RoomTypeRepo{db: db} }

const roomTypeColumns = `id, name, total_rooms, base_price, created_at, updated_at`

// GetByID returns the room type or store.ErrNotFound.
func (r *RoomTypeRepo) GetByID(ctx context.Context, id uint64) (*model.RoomType, error) {
    var rt model.RoomType
    err := r.db.QueryRowContext(ctx,
        `SELECT `+roomTypeColumns+` FROM room_types WHERE id = ? LIMIT 1`, id,
    ).Scan(&rt.ID, &rt.Name, &rt.TotalRooms, &rt.BasePrice, &rt.CreatedAt, &rt.UpdatedAt)
    if err != nil {
        return nil, translate(err)
    }
    return &rt, nil
}

// List returns every room type ordered by id.
func (r *RoomTypeRepo) List(ctx context.Context) ([]model.RoomType, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+roomTypeColumns+` FROM room_types ORDER BY id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.RoomType
    for rows.Next() {
        var rt model.RoomType
        if err := rows.Scan(&rt.ID, &rt.Name, &rt.TotalRooms, &rt.BasePrice, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, rt)
    }
    return out, rows.Err()
}
