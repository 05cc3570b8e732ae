package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/auth"
)

const uniqueViolation = "unique_violation"

type dbtx interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresStore is the lib/pq backed Store.
type PostgresStore struct {
	db dbtx
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `
	id, email, email_normalized, display_name, avatar_url, profile_complete,
	COALESCE(company, ''), COALESCE(role, ''), COALESCE(phone, ''),
	created_at, updated_at`

func scanAccount(row *sql.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.EmailNormalized,
		&a.DisplayName,
		&a.AvatarURL,
		&a.ProfileComplete,
		&a.Company,
		&a.Role,
		&a.Phone,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, mapErr(err)
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, normalized string) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email_normalized = $1
	`, normalized)
	return scanAccount(row)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, a Account) (Account, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (
			email, email_normalized, display_name, avatar_url, profile_complete,
			company, role, phone
		)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''))
		RETURNING `+accountColumns,
		a.Email,
		auth.NormalizeEmail(a.Email),
		a.DisplayName,
		a.AvatarURL,
		a.ProfileComplete,
		a.Company,
		a.Role,
		a.Phone,
	)
	return scanAccount(row)
}

func (s *PostgresStore) UpdateAccount(ctx context.Context, a Account) (Account, error) {
	if a.ID == "" {
		return Account{}, errors.New("account: update without id")
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET email = $2,
		    email_normalized = $3,
		    display_name = $4,
		    avatar_url = $5,
		    profile_complete = $6,
		    company = NULLIF($7, ''),
		    role = NULLIF($8, ''),
		    phone = NULLIF($9, ''),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns,
		a.ID,
		a.Email,
		auth.NormalizeEmail(a.Email),
		a.DisplayName,
		a.AvatarURL,
		a.ProfileComplete,
		a.Company,
		a.Role,
		a.Phone,
	)
	return scanAccount(row)
}

func (s *PostgresStore) FindIdentity(ctx context.Context, provider, subject string) (ExternalIdentity, error) {
	var i ExternalIdentity
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, provider, subject, email_normalized, created_at
		FROM external_identities
		WHERE provider = $1
		  AND subject = $2
	`, provider, subject).Scan(
		&i.ID,
		&i.AccountID,
		&i.Provider,
		&i.Subject,
		&i.EmailNormalized,
		&i.CreatedAt,
	)
	return i, mapErr(err)
}

func (s *PostgresStore) CreateIdentity(ctx context.Context, i ExternalIdentity) (ExternalIdentity, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO external_identities (account_id, provider, subject, email_normalized)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`,
		i.AccountID,
		i.Provider,
		i.Subject,
		i.EmailNormalized,
	).Scan(&i.ID, &i.CreatedAt)
	return i, mapErr(err)
}

// WithTx begins a transaction unless the store is already inside one.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	sqlDB, ok := s.db.(*sql.DB)
	if !ok {
		return fn(s)
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("account: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("account: commit tx: %w", mapErr(err))
	}
	return nil
}

// mapErr translates driver errors into package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}
	return err
}
