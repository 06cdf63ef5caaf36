package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// KeyEnv is the env var name for the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	KeyEnv = "PB_TOKEN_KEY"

	// MinKeyBytes is the shortest signing key NewManager accepts.
	MinKeyBytes = 32

	defaultIssuer = "projectbank"
	maxLeeway     = 2 * time.Minute
)

// Config configures a Manager.
type Config struct {
	Key    []byte
	Issuer string
	Leeway time.Duration
}

// Claims is the decoded payload of a session token.
type Claims struct {
	SessionID string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Manager signs and verifies session tokens. It is safe for concurrent use.
type Manager struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Key) == 0 {
		return nil, ErrKeyMissing
	}
	if len(cfg.Key) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, fmt.Errorf("token: invalid leeway %s", cfg.Leeway)
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)

	return &Manager{
		key:    key,
		issuer: issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}, nil
}

// Issue signs a token for sessionID/userID that expires at expiresAt.
func (m *Manager) Issue(sessionID, userID string, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(userID) == "" {
		return "", errors.New("token: session id and user id are required")
	}

	now := m.now().UTC()
	if !expiresAt.After(now) {
		return "", errors.New("token: expiry must be in the future")
	}

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Parse verifies raw and returns its claims.
// Expired tokens yield ErrExpiredToken; anything else malformed yields ErrInvalidToken.
func (m *Manager) Parse(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(m.leeway))
	}

	var sc sessionClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(raw, &sc, func(*jwt.Token) (any, error) {
		return m.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if sc.ID == "" || sc.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		SessionID: sc.ID,
		UserID:    sc.Subject,
	}
	if sc.IssuedAt != nil {
		out.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		out.ExpiresAt = sc.ExpiresAt.Time
	}
	return out, nil
}

// KeyFromEnv returns the configured signing key (trimmed), enforcing MinKeyBytes.
// If the env var is missing/blank -> ErrKeyMissing.
// If too short -> ErrKeyTooShort.
func KeyFromEnv() ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(KeyEnv))
	if raw == "" {
		return nil, ErrKeyMissing
	}
	if len(raw) < MinKeyBytes {
		return nil, ErrKeyTooShort
	}
	return []byte(raw), nil
}

// Fingerprint returns a short SHA-256 hex prefix of tok, safe to log.
func Fingerprint(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])[:12]
}
