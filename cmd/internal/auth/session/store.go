package session

import (
	"context"
	"time"
)

// DeviceContext describes the browser that owns a session.
type DeviceContext struct {
	RememberMe bool
	UserAgent  string
	IP         string
}

// Row is the stored state of one session.
type Row struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RememberMe bool       `json:"remember_me"`
	UserAgent  string     `json:"user_agent,omitempty"`
	IP         string     `json:"ip,omitempty"`
}

// Active reports whether the row is usable at now.
func (r Row) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// Store abstracts persistence for session state.
// Get returns ErrSessionNotFound for unknown ids; Revoke and RevokeAll are idempotent.
type Store interface {
	Create(ctx context.Context, row Row) error
	Get(ctx context.Context, sessionID string) (Row, error)
	Touch(ctx context.Context, now time.Time, sessionID string) error
	Revoke(ctx context.Context, now time.Time, sessionID string) error
	RevokeAll(ctx context.Context, now time.Time, userID string) error
}
