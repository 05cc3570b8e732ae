package provider

import (
	"context"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth"
)

// IdentityProvider defines the contract every external identity provider
// must implement. Implementations return identity facts only and must not
// perform account creation, linking, or session management.
//
// Errors are *apperr.Error values classified as either provider
// unavailability (retryable) or an invalid assertion (not retryable).
type IdentityProvider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// VerifyIDToken validates a provider-issued ID token.
	VerifyIDToken(ctx context.Context, rawIDToken string) (*auth.Identity, error)

	// ExchangeCode redeems an authorization code issued to the frontend at
	// origin and verifies the returned ID token.
	ExchangeCode(ctx context.Context, code string, origin string) (*auth.Identity, error)
}
