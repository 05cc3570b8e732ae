package resolver

import (
	"context"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth"
)

// Result is the account an identity resolved to.
type Result struct {
	Account account.Account
	IsNew   bool
}

// Resolver determines which local account an external identity belongs to.
// It is the ONLY place where identity-to-account mapping logic lives.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (Result, error)
}
