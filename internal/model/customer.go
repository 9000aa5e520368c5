package model

import "time"

// Customer is a guest identified by email.  Customers are upserted by the
// booking engine and never deleted by it.  Optional fields are empty
// strings when unknown.
type Customer struct {
    ID            uint64    // customers.id
    Name          string    // customers.name
    Email         string    // customers.email (unique, lower-cased)
    Phone         string    // customers.phone
    Address       string    // customers.address
    IDProofType   string    // customers.id_proof_type
    IDProofNumber string    // customers.id_proof_number
    CreatedAt     time.Time // customers.created_at
    UpdatedAt     time.Time // customers.updated_at
}
