package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/account"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	deletes  int
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]Session)}
}

func (m *memStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.sessions, id)
	return nil
}

func (m *memStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

type accountsFunc func(ctx context.Context, id string) (account.Account, error)

func (f accountsFunc) GetAccount(ctx context.Context, id string) (account.Account, error) {
	return f(ctx, id)
}

func staticAccounts(accs ...account.Account) accountsFunc {
	return func(_ context.Context, id string) (account.Account, error) {
		for _, a := range accs {
			if a.ID == id {
				return a, nil
			}
		}
		return account.Account{}, account.ErrNotFound
	}
}

var testAccount = account.Account{
	ID:          "acc-1",
	Email:       "user@gmail.com",
	DisplayName: "User",
}

func newTestManager(t *testing.T, store Store, accounts AccountReader, cacheTTL time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(store, accounts, ManagerConfig{
		TTL:      24 * time.Hour,
		Cookie:   CookieOptions{Secure: true},
		CacheTTL: cacheTTL,
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

// requestWith returns a request carrying the cookies set on rec.
func requestWith(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SecureCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", SecureCookieName)
	return nil
}

func TestNewManager_RequiresTTL(t *testing.T) {
	_, err := NewManager(newMemStore(), staticAccounts(), ManagerConfig{})
	assert.Error(t, err)
}

func TestEstablish_IssuesCookieAndSession(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, staticAccounts(testAccount), 0)

	rec := httptest.NewRecorder()
	sess, err := m.Establish(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
	require.NoError(t, err)

	c := sessionCookie(t, rec)
	assert.Equal(t, sess.SessionID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Len(t, sess.SessionID, 43)
	assert.True(t, store.has(sess.SessionID))
	assert.Equal(t, "acc-1", sess.AccountID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), sess.ExpiresAt, time.Minute)
}

func TestEstablish_RotatesPriorSession(t *testing.T) {
	store := newMemStore()
	m := newTestManager(t, store, staticAccounts(testAccount), 0)
	ctx := context.Background()

	first := httptest.NewRecorder()
	s1, err := m.Establish(ctx, first, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
	require.NoError(t, err)

	completed := testAccount
	completed.ProfileComplete = true

	second := httptest.NewRecorder()
	s2, err := m.Establish(ctx, second, requestWith(first), completed)
	require.NoError(t, err)

	assert.NotEqual(t, s1.SessionID, s2.SessionID)
	assert.False(t, store.has(s1.SessionID))
	assert.True(t, store.has(s2.SessionID))
	assert.True(t, s2.ProfileComplete)
	assert.Equal(t, s2.SessionID, sessionCookie(t, second).Value)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("no cookie", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), staticAccounts(testAccount), 0)

		st, err := m.Status(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.False(t, st.LoggedIn)
		assert.Nil(t, st.Account)
	})

	t.Run("active session", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), staticAccounts(testAccount), 0)
		rec := httptest.NewRecorder()
		_, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
		require.NoError(t, err)

		st, err := m.Status(ctx, requestWith(rec))
		require.NoError(t, err)
		assert.True(t, st.LoggedIn)
		assert.False(t, st.ProfileComplete)
		require.NotNil(t, st.Account)
		assert.Equal(t, "acc-1", st.Account.ID)
	})

	t.Run("expired session is reported but not deleted", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, staticAccounts(testAccount), 0)
		rec := httptest.NewRecorder()
		sess, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
		require.NoError(t, err)

		m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
		deletes := store.deletes

		st, err := m.Status(ctx, requestWith(rec))
		require.NoError(t, err)
		assert.False(t, st.LoggedIn)
		assert.True(t, store.has(sess.SessionID))
		assert.Equal(t, deletes, store.deletes)
	})

	t.Run("missing account", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), staticAccounts(), 0)
		rec := httptest.NewRecorder()
		_, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
		require.NoError(t, err)

		st, err := m.Status(ctx, requestWith(rec))
		require.NoError(t, err)
		assert.False(t, st.LoggedIn)
	})

	t.Run("account store failure", func(t *testing.T) {
		failing := accountsFunc(func(context.Context, string) (account.Account, error) {
			return account.Account{}, errors.New("db down")
		})
		m := newTestManager(t, newMemStore(), failing, 0)
		rec := httptest.NewRecorder()
		_, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
		require.NoError(t, err)

		_, err = m.Status(ctx, requestWith(rec))
		assert.ErrorIs(t, err, apperr.ErrInternal)
	})
}

func TestStatus_ServedFromCache(t *testing.T) {
	calls := 0
	accounts := accountsFunc(func(context.Context, string) (account.Account, error) {
		calls++
		return account.Account{}, errors.New("should not be called")
	})
	m := newTestManager(t, newMemStore(), accounts, time.Minute)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	_, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
	require.NoError(t, err)
	m.cache.Wait()

	st, err := m.Status(ctx, requestWith(rec))
	require.NoError(t, err)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, 0, calls)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("no cookie", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), staticAccounts(testAccount), 0)
		_, err := m.Authenticate(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	})

	t.Run("unknown session", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), staticAccounts(testAccount), 0)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: SecureCookieName, Value: "forged"})

		_, err := m.Authenticate(ctx, r)
		assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	})

	t.Run("valid", func(t *testing.T) {
		m := newTestManager(t, newMemStore(), staticAccounts(testAccount), 0)
		rec := httptest.NewRecorder()
		established, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
		require.NoError(t, err)

		sess, err := m.Authenticate(ctx, requestWith(rec))
		require.NoError(t, err)
		assert.Equal(t, established.SessionID, sess.SessionID)
	})

	t.Run("expired is deleted", func(t *testing.T) {
		store := newMemStore()
		m := newTestManager(t, store, staticAccounts(testAccount), 0)
		rec := httptest.NewRecorder()
		established, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
		require.NoError(t, err)

		m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
		_, err = m.Authenticate(ctx, requestWith(rec))
		assert.ErrorIs(t, err, apperr.ErrAuthRequired)
		assert.False(t, store.has(established.SessionID))
	})
}

func TestTerminate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	m := newTestManager(t, store, staticAccounts(testAccount), 0)

	rec := httptest.NewRecorder()
	sess, err := m.Establish(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil), testAccount)
	require.NoError(t, err)

	out := httptest.NewRecorder()
	require.NoError(t, m.Terminate(ctx, out, requestWith(rec)))
	assert.False(t, store.has(sess.SessionID))
	assert.Equal(t, -1, sessionCookie(t, out).MaxAge)

	// idempotent: the same stale cookie and no cookie at all both succeed
	require.NoError(t, m.Terminate(ctx, httptest.NewRecorder(), requestWith(rec)))
	require.NoError(t, m.Terminate(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil)))
}

func TestCookieOptions_DevName(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "abc", time.Now().Add(time.Hour), CookieOptions{})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DevCookieName, cookies[0].Name)
	assert.False(t, cookies[0].Secure)
	assert.True(t, cookies[0].HttpOnly)
}
