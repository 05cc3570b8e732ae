package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("account: not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("account: unique constraint violated")
)

// Account is the local user record.
type Account struct {
	ID              string
	Email           string
	EmailNormalized string
	DisplayName     string
	AvatarURL       string
	ProfileComplete bool
	Company         string
	Role            string
	Phone           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ExternalIdentity links one (provider, subject) pair to an Account.
type ExternalIdentity struct {
	ID              string
	AccountID       string
	Provider        string
	Subject         string
	EmailNormalized string
	CreatedAt       time.Time
}

// Store persists accounts and external identities. Writes recompute the
// normalized email from Email.
type Store interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	FindAccountByEmail(ctx context.Context, normalized string) (Account, error)
	CreateAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) (Account, error)

	FindIdentity(ctx context.Context, provider, subject string) (ExternalIdentity, error)
	CreateIdentity(ctx context.Context, i ExternalIdentity) (ExternalIdentity, error)

	// WithTx runs fn against a transactional Store. fn's error rolls back.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Profile holds the fields a user supplies when completing sign-up.
type Profile struct {
	Name    string
	Email   string
	Company string
	Role    string
	Phone   string
}

// ApplyProfile copies a completed profile onto a and marks it complete.
// An empty email keeps the current one.
func (a *Account) ApplyProfile(p Profile) {
	a.DisplayName = p.Name
	if p.Email != "" {
		a.Email = p.Email
	}
	a.Company = p.Company
	a.Role = p.Role
	a.Phone = p.Phone
	a.ProfileComplete = true
}
