package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
)

const defaultMaxTries = 3

var tracer = otel.Tracer("github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth/resolver")

// StoreResolver resolves identities against an account.Store.
// Lookup order: (provider, subject), then normalized email, then create.
type StoreResolver struct {
	store                account.Store
	linkRequiresVerified bool
	maxTries             uint
	retryInterval        time.Duration
}

type Option func(*StoreResolver)

// WithLinkRequiresVerifiedEmail controls whether an existing account found by
// normalized email is only linked when the provider marks the email verified.
func WithLinkRequiresVerifiedEmail(required bool) Option {
	return func(r *StoreResolver) {
		r.linkRequiresVerified = required
	}
}

// WithMaxTries bounds how many times resolution restarts after a conflict.
func WithMaxTries(n uint) Option {
	return func(r *StoreResolver) {
		if n > 0 {
			r.maxTries = n
		}
	}
}

func NewStoreResolver(store account.Store, opts ...Option) *StoreResolver {
	if store == nil {
		panic("resolver: account store is required")
	}

	r := &StoreResolver{
		store:                store,
		linkRequiresVerified: true,
		maxTries:             defaultMaxTries,
		retryInterval:        10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StoreResolver) Resolve(ctx context.Context, identity *auth.Identity) (Result, error) {
	if identity == nil {
		return Result{}, apperr.Validation("identity is required")
	}

	normalized := auth.NormalizeEmail(identity.Email)
	if normalized == "" {
		return Result{}, apperr.Validation("email claim is required")
	}
	if identity.Subject == "" {
		return Result{}, apperr.Validation("subject claim is required")
	}

	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("identity.provider", identity.Provider))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryInterval
	b.MaxInterval = 10 * r.retryInterval

	attempt := 0
	res, err := backoff.Retry(ctx, func() (Result, error) {
		attempt++
		res, err := r.resolveOnce(ctx, identity, normalized)
		if err == nil {
			return res, nil
		}
		if errors.Is(err, account.ErrConflict) {
			// a concurrent sign-in won the insert; start over from the identity lookup
			logger.Warn("identity resolution conflict", map[string]any{
				"provider": identity.Provider,
				"attempt":  attempt,
				"error":    err,
			})
			return Result{}, err
		}
		return Result{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxTries))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")

		if _, ok := apperr.As(err); ok {
			return Result{}, err
		}
		return Result{}, apperr.Internal("resolve identity", err)
	}

	span.SetAttributes(attribute.Bool("account.new", res.IsNew))
	return res, nil
}

func (r *StoreResolver) resolveOnce(
	ctx context.Context,
	identity *auth.Identity,
	normalized string,
) (Result, error) {

	var res Result
	err := r.store.WithTx(ctx, func(tx account.Store) error {
		// 1. Known external identity
		ident, err := tx.FindIdentity(ctx, identity.Provider, identity.Subject)
		if err == nil {
			acc, err := tx.GetAccount(ctx, ident.AccountID)
			if err != nil {
				return fmt.Errorf("load linked account: %w", err)
			}
			acc, err = refresh(ctx, tx, acc, identity)
			if err != nil {
				return err
			}
			res = Result{Account: acc}
			return nil
		}
		if !errors.Is(err, account.ErrNotFound) {
			return fmt.Errorf("find identity: %w", err)
		}

		// 2. Existing account with the same normalized email
		acc, err := tx.FindAccountByEmail(ctx, normalized)
		if err == nil {
			if r.linkRequiresVerified && !identity.EmailVerified {
				return apperr.Forbidden("email ownership is not verified by the provider").
					WithCode("email_unverified")
			}
			acc, err = refresh(ctx, tx, acc, identity)
			if err != nil {
				return err
			}
			if err := link(ctx, tx, acc.ID, identity, normalized); err != nil {
				return err
			}
			res = Result{Account: acc}
			return nil
		}
		if !errors.Is(err, account.ErrNotFound) {
			return fmt.Errorf("find account by email: %w", err)
		}

		// 3. New account
		acc, err = tx.CreateAccount(ctx, account.Account{
			Email:       identity.Email,
			DisplayName: identity.Name,
			AvatarURL:   identity.AvatarURL,
		})
		if err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if err := link(ctx, tx, acc.ID, identity, normalized); err != nil {
			return err
		}
		res = Result{Account: acc, IsNew: true}
		return nil
	})

	return res, err
}

// refresh copies non-empty name and avatar claims onto acc and persists
// the account when anything changed.
func refresh(
	ctx context.Context,
	tx account.Store,
	acc account.Account,
	identity *auth.Identity,
) (account.Account, error) {

	changed := false
	if identity.Name != "" && identity.Name != acc.DisplayName {
		acc.DisplayName = identity.Name
		changed = true
	}
	if identity.AvatarURL != "" && identity.AvatarURL != acc.AvatarURL {
		acc.AvatarURL = identity.AvatarURL
		changed = true
	}
	if !changed {
		return acc, nil
	}

	updated, err := tx.UpdateAccount(ctx, acc)
	if err != nil {
		return account.Account{}, fmt.Errorf("refresh account: %w", err)
	}
	return updated, nil
}

func link(
	ctx context.Context,
	tx account.Store,
	accountID string,
	identity *auth.Identity,
	normalized string,
) error {

	_, err := tx.CreateIdentity(ctx, account.ExternalIdentity{
		AccountID:       accountID,
		Provider:        identity.Provider,
		Subject:         identity.Subject,
		EmailNormalized: normalized,
	})
	if err != nil {
		return fmt.Errorf("link identity: %w", err)
	}
	return nil
}
