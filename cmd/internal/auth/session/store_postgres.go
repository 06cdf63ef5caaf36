package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (<schema>.sessions).
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a Postgres-backed session store in schema
// (default "projectbank"). The schema must already contain the users table.
func NewPostgresStore(pool *pgxpool.Pool, schema string) *PostgresStore {
	if schema == "" {
		schema = "projectbank"
	}
	return &PostgresStore{pool: pool, table: pgx.Identifier{schema, "sessions"}.Sanitize()}
}

// EnsureSchema creates the sessions table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  last_used_at TIMESTAMPTZ NULL,
  expires_at TIMESTAMPTZ NOT NULL,
  revoked_at TIMESTAMPTZ NULL,
  remember_me BOOLEAN NOT NULL DEFAULT false,
  user_agent TEXT NULL,
  ip TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON %s (user_id);
`, s.table, s.table))
	return err
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, row Row) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (
			id, user_id, created_at, last_used_at, expires_at, revoked_at,
			remember_me, user_agent, ip
		) VALUES ($1, $2, $3, $3, $4, NULL, $5, $6, $7)
	`, row.ID, row.UserID, row.CreatedAt, row.ExpiresAt, row.RememberMe, nullIfEmpty(row.UserAgent), nullIfEmpty(row.IP))
	return err
}

// Get loads a session row by ID.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Row, error) {
	var (
		row Row
		ua  *string
		ip  *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, created_at, last_used_at, expires_at, revoked_at,
		       remember_me, user_agent, ip
		  FROM `+s.table+`
		 WHERE id = $1
	`, sessionID).Scan(
		&row.ID,
		&row.UserID,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.ExpiresAt,
		&row.RevokedAt,
		&row.RememberMe,
		&ua,
		&ip,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}
	if ua != nil {
		row.UserAgent = *ua
	}
	if ip != nil {
		row.IP = *ip
	}
	return row, nil
}

// Touch updates last_used_at for a session.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE `+s.table+` SET last_used_at = $2 WHERE id = $1`, sessionID, now)
	return err
}

// Revoke revokes a single session (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		   SET revoked_at = COALESCE(revoked_at, $2)
		 WHERE id = $1
	`, sessionID, now)
	return err
}

// RevokeAll revokes all sessions for a user (idempotent).
func (s *PostgresStore) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		   SET revoked_at = COALESCE(revoked_at, $2)
		 WHERE user_id = $1
	`, userID, now)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
