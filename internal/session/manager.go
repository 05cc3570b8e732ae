package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
)

const idBytes = 32 // 256 bits

// AccountReader loads accounts for status queries.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (account.Account, error)
}

type ManagerConfig struct {
	TTL    time.Duration
	Cookie CookieOptions

	// CacheTTL bounds how long an account read may be served from memory.
	// Zero disables the cache.
	CacheTTL time.Duration
}

// Manager establishes, rotates, reports and terminates sessions.
type Manager struct {
	store    Store
	accounts AccountReader
	cache    *ristretto.Cache[string, account.Account]
	cfg      ManagerConfig

	now    func() time.Time
	random io.Reader
}

// Status is the side-effect-free view of the caller's session.
type Status struct {
	LoggedIn        bool
	ProfileComplete bool
	Account         *account.Account
}

func NewManager(store Store, accounts AccountReader, cfg ManagerConfig) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("session: ttl must be positive")
	}

	m := &Manager{
		store:    store,
		accounts: accounts,
		cfg:      cfg,
		now:      time.Now,
		random:   rand.Reader,
	}

	if cfg.CacheTTL > 0 {
		c, err := ristretto.NewCache(&ristretto.Config[string, account.Account]{
			NumCounters: 10_000,
			MaxCost:     1_000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("session: account cache: %w", err)
		}
		m.cache = c
	}
	return m, nil
}

// Close releases the account cache.
func (m *Manager) Close() {
	if m.cache != nil {
		m.cache.Close()
	}
}

func (m *Manager) generateID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := io.ReadFull(m.random, b); err != nil {
		return "", fmt.Errorf("session: failed to generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Establish issues a fresh session for acc. Any session named by the
// request cookie is deleted first, so the identifier always rotates.
func (m *Manager) Establish(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	acc account.Account,
) (Session, error) {

	if prev := ReadCookie(r, m.cfg.Cookie); prev != "" {
		if err := m.store.Delete(ctx, prev); err != nil {
			return Session{}, apperr.Internal("rotate session", err)
		}
	}

	id, err := m.generateID()
	if err != nil {
		return Session{}, apperr.Internal("create session", err)
	}

	now := m.now()
	sess := Session{
		SessionID:       id,
		AccountID:       acc.ID,
		ProfileComplete: acc.ProfileComplete,
		CreatedAt:       now,
		ExpiresAt:       now.Add(m.cfg.TTL),
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return Session{}, apperr.Internal("persist session", err)
	}

	SetCookie(w, sess.SessionID, sess.ExpiresAt, m.cfg.Cookie)
	m.remember(acc)

	return sess, nil
}

// Authenticate returns the live session named by the request cookie.
// Expired sessions are deleted and reported as AuthRequired.
func (m *Manager) Authenticate(ctx context.Context, r *http.Request) (Session, error) {
	id := ReadCookie(r, m.cfg.Cookie)
	if id == "" {
		return Session{}, apperr.AuthRequired("no active session")
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return Session{}, apperr.Internal("load session", err)
	}
	if sess == nil {
		return Session{}, apperr.AuthRequired("no active session")
	}

	if sess.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		return Session{}, apperr.AuthRequired("session expired")
	}
	return *sess, nil
}

// Status reports the caller's session without modifying any state.
func (m *Manager) Status(ctx context.Context, r *http.Request) (Status, error) {
	id := ReadCookie(r, m.cfg.Cookie)
	if id == "" {
		return Status{}, nil
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return Status{}, apperr.Internal("load session", err)
	}
	if sess == nil || sess.Expired(m.now()) {
		return Status{}, nil
	}

	acc, err := m.account(ctx, sess.AccountID)
	if errors.Is(err, account.ErrNotFound) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, apperr.Internal("load account", err)
	}

	return Status{
		LoggedIn:        true,
		ProfileComplete: acc.ProfileComplete,
		Account:         &acc,
	}, nil
}

// Terminate invalidates the caller's session. It succeeds when there is
// no session to invalidate.
func (m *Manager) Terminate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if id := ReadCookie(r, m.cfg.Cookie); id != "" {
		if err := m.store.Delete(ctx, id); err != nil {
			logger.Warn("session delete failed", map[string]any{"error": err})
		}
	}

	ClearCookie(w, m.cfg.Cookie)
	return nil
}

func (m *Manager) account(ctx context.Context, id string) (account.Account, error) {
	if m.cache != nil {
		if acc, ok := m.cache.Get(id); ok {
			return acc, nil
		}
	}

	acc, err := m.accounts.GetAccount(ctx, id)
	if err != nil {
		return account.Account{}, err
	}
	m.remember(acc)
	return acc, nil
}

func (m *Manager) remember(acc account.Account) {
	if m.cache == nil || acc.ID == "" {
		return
	}
	m.cache.SetWithTTL(acc.ID, acc, 1, m.cfg.CacheTTL)
}
