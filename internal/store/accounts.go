package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hotel-booking-engine/internal/model"
)

// Accounts is an in-memory implementation of the staff user and refresh
// token tables, used with the memory store driver.  Its method set matches
// repository.UserRepo and repository.TokenRepo.
type Accounts struct {
	mu     sync.Mutex
	nextID uint64
	users  map[uint64]model.User
	tokens map[string]model.RefreshToken
}

// NewAccounts returns an empty account store.
func NewAccounts() *Accounts {
	return &Accounts{
		users:  make(map[uint64]model.User),
		tokens: make(map[string]model.RefreshToken),
	}
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create adds an active account and returns its ID.
func (a *Accounts) Create(_ context.Context, email, passwordHash, role string) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = normalizeEmail(email)
	for _, u := range a.users {
		if u.Email == email {
			return 0, ErrEmailExists
		}
	}
	a.nextID++
	now := time.Now().UTC()
	a.users[a.nextID] = model.User{
		ID:           a.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return a.nextID, nil
}

// CountByRole reports how many accounts hold role.
func (a *Accounts) CountByRole(_ context.Context, role string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, u := range a.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// GetByEmail fetches an account by normalized email.
func (a *Accounts) GetByEmail(_ context.Context, email string) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	email = normalizeEmail(email)
	for _, u := range a.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// GetByID fetches an account by id.
func (a *Accounts) GetByID(_ context.Context, id uint64) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// StoreRefresh records a refresh token hash.
func (a *Accounts) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[tokenHash] = model.RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// ValidateRefresh returns the owner of a live token, or ErrNotFound.
func (a *Accounts) ValidateRefresh(_ context.Context, tokenHash string, now time.Time) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || !t.ExpiresAt.After(now) {
		return 0, ErrNotFound
	}
	return t.UserID, nil
}

// RevokeByHash revokes one live token, or returns ErrNotFound.
func (a *Accounts) RevokeByHash(_ context.Context, tokenHash string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	a.tokens[tokenHash] = t
	return nil
}

// RevokeAllForUser revokes every live token of userID.
func (a *Accounts) RevokeAllForUser(_ context.Context, userID uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now().UTC()
	for h, t := range a.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			a.tokens[h] = t
		}
	}
	return nil
}
