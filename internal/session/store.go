package session

import (
	"context"
	"time"
)

// Session represents an authenticated session.
// It stores only identity pointers and the authorization-relevant profile
// flag, never provider tokens.
type Session struct {
	SessionID       string    `json:"session_id"`
	AccountID       string    `json:"account_id"`
	ProfileComplete bool      `json:"profile_complete"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"` // absolute expiry time
}

// Expired reports whether the session is past its absolute expiry.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store defines how sessions are stored and retrieved.
// Get returns (nil, nil) for an unknown id.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) error
}
