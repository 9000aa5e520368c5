package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/hotel-booking-engine/internal/model"
)

// CustomerRepo provides access to the customers table.  Email is the
// natural key and is stored lower-cased.
type CustomerRepo struct {
    db *sql.DB
}

// NewCustomerRepo returns a CustomerRepo bound to db.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

const customerColumns = `id, name, email, phone, address, id_proof_type, id_proof_number, created_at, updated_at`

type rowScanner interface {
    Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*model.Customer, error) {
    var c model.Customer
    err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address,
        &c.IDProofType, &c.IDProofNumber, &c.CreatedAt, &c.UpdatedAt)
    if err != nil {
        return nil, translate(err)
    }
    return &c, nil
}

// GetByID returns the customer or store.ErrNotFound.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (*model.Customer, error) {
    return scanCustomer(r.db.QueryRowContext(ctx,
        `SELECT `+customerColumns+` FROM customers WHERE id = ? LIMIT 1`, id))
}

// UpsertTx inserts the customer or, when the email exists, overwrites the
// name and every optional field supplied as non-empty.  c is replaced with
// the stored row.  The upsert takes the row lock on the email key.
func (r *CustomerRepo) UpsertTx(ctx context.Context, tx *sql.Tx, c *model.Customer) error {
    email := strings.ToLower(strings.TrimSpace(c.Email))
    res, err := tx.ExecContext(ctx,
        `INSERT INTO customers (name, email, phone, address, id_proof_type, id_proof_number)
         VALUES (?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE
             id = LAST_INSERT_ID(id),
             name = VALUES(name),
             phone = IF(VALUES(phone) = '', phone, VALUES(phone)),
             address = IF(VALUES(address) = '', address, VALUES(address)),
             id_proof_type = IF(VALUES(id_proof_type) = '', id_proof_type, VALUES(id_proof_type)),
             id_proof_number = IF(VALUES(id_proof_number) = '', id_proof_number, VALUES(id_proof_number))`,
        c.Name, email, c.Phone, c.Address, c.IDProofType, c.IDProofNumber,
    )
    if err != nil {
        return translate(err)
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    stored, err := scanCustomer(tx.QueryRowContext(ctx,
        `SELECT `+customerColumns+` FROM customers WHERE id = ?`, uint64(id)))
    if err != nil {
        return err
    }
    *c = *stored
    return nil
}
