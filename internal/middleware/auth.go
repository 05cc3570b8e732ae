package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/apperr"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/httpx"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/session"
)

// unexported, collision-proof context key
type sessionContextKeyType struct{}

var sessionKey = sessionContextKeyType{}

// SessionFromContext returns the session attached by RequireAuth.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionKey).(session.Session)
	return s, ok
}

// AccountIDFromContext extracts the authenticated account ID from context.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok || s.AccountID == "" {
		return "", false
	}
	return s.AccountID, true
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// Authenticator resolves the request's live session.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (session.Session, error)
}

type AuthMiddleware struct {
	Sessions Authenticator
}

func NewAuthMiddleware(sessions Authenticator) *AuthMiddleware {
	return &AuthMiddleware{Sessions: sessions}
}

// RequireAuth rejects requests without a live session and attaches the
// session to the request context otherwise.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.Sessions.Authenticate(r.Context(), r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindInternal {
		logger.Error("session lookup failed", map[string]any{
			"request_id": w.Header().Get(RequestIDHeader),
			"path":       r.URL.Path,
			"error":      err,
		})
		e = apperr.Internal("internal error", nil)
	}

	body := httpx.ErrorResponse{Code: e.Code, Message: e.Message}
	if e.Kind == apperr.KindInternal {
		body.RequestID = w.Header().Get(RequestIDHeader)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apperr.Status(e.Kind))
	_ = json.NewEncoder(w).Encode(body)
}
