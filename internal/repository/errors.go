// Package repository implements the MySQL persistence layer.  Each repo
// owns one table; methods ending in Tx run inside a caller's transaction
// and never commit or roll back themselves.  Store adapts the repos to the
// store.Store contract used by the booking engine.
package repository

import (
    "database/sql"
    "errors"

    "github.com/iliyamo/hotel-booking-engine/internal/database"
    "github.com/iliyamo/hotel-booking-engine/internal/store"
)

// ErrEmailExists is returned when a staff account email is already taken.
var ErrEmailExists = store.ErrEmailExists

// translate maps driver errors onto the store sentinels: missing rows
// become store.ErrNotFound and InnoDB lock aborts store.ErrLockTimeout.
func translate(err error) error {
    switch {
    case err == nil:
        return nil
    case errors.Is(err, sql.ErrNoRows):
        return store.ErrNotFound
    case database.IsLockError(err):
        return errors.Join(store.ErrLockTimeout, err)
    default:
        return err
    }
}
