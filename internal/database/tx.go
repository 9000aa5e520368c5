package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a database transaction that supports nested savepoints.
type Tx struct {
	*sql.Tx
	savepoints int
}

// WithinTx runs fn in a transaction on db.  The transaction commits when fn
// returns nil and is rolled back on error or panic.  Cancelling ctx rolls
// the transaction back (database/sql semantics).
func WithinTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if err := fn(ctx, &Tx{Tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Savepoint runs fn inside SAVEPOINT sp_N.  When fn fails, work done since
// the savepoint is rolled back and fn's error returned; row locks taken in
// the meantime stay held until the outer transaction ends.
func (t *Tx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	t.savepoints++
	name := fmt.Sprintf("sp_%d", t.savepoints)
	if _, err := t.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := t.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		return err
	}
	if _, err := t.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
