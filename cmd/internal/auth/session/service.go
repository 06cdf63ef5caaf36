package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"projectbank/cmd/identity/ids"
	"projectbank/cmd/security/token"
)

// TokenManager signs and parses session tokens (security/token.Manager).
type TokenManager interface {
	Issue(sessionID, userID string, expiresAt time.Time) (string, error)
	Parse(raw string) (token.Claims, error)
}

// Service issues, validates and revokes sessions.
type Service struct {
	cfg    Config
	tokens TokenManager
	store  Store
	now    func() time.Time
}

// Issued is the result of issuing a session.
type Issued struct {
	SessionID string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// NewService constructs a Service.
func NewService(cfg Config, store Store, tokens TokenManager) *Service {
	return &Service{cfg: cfg, store: store, tokens: tokens, now: time.Now}
}

// Issue creates a session row for userID and returns a signed token naming it.
func (s *Service) Issue(ctx context.Context, userID string, dev DeviceContext) (Issued, error) {
	now := s.now().UTC()

	id, err := ids.NewULID(now)
	if err != nil {
		return Issued{}, err
	}

	row := Row{
		ID:         id,
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.ttl(dev.RememberMe)),
		RememberMe: dev.RememberMe,
		UserAgent:  truncate(dev.UserAgent, 512),
		IP:         dev.IP,
	}
	if err := s.store.Create(ctx, row); err != nil {
		return Issued{}, err
	}

	tok, err := s.tokens.Issue(row.ID, userID, row.ExpiresAt)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID: row.ID,
		UserID:    userID,
		Token:     tok,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Validate verifies raw and returns the backing row if it is still active.
func (s *Service) Validate(ctx context.Context, raw string) (Row, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return Row{}, ErrSessionExpired
		}
		return Row{}, ErrInvalidToken
	}

	row, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		return Row{}, err
	}

	now := s.now()
	switch {
	case row.UserID != claims.UserID:
		return Row{}, ErrInvalidToken
	case row.RevokedAt != nil:
		return Row{}, ErrSessionRevoked
	case !row.ExpiresAt.Add(s.cfg.ClockSkew).After(now):
		return Row{}, ErrSessionExpired
	}

	// last_used_at is informational.
	_ = s.store.Touch(ctx, now.UTC(), row.ID)
	return row, nil
}

// Revoke revokes the session named by raw. Unknown or malformed tokens are a no-op,
// so logout always succeeds from the caller's perspective.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil
	}
	return s.store.Revoke(ctx, s.now().UTC(), claims.SessionID)
}

// RevokeAll revokes every session of userID.
func (s *Service) RevokeAll(ctx context.Context, userID string) error {
	return s.store.RevokeAll(ctx, s.now().UTC(), userID)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
