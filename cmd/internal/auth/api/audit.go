package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent is one security-relevant auth action.
type AuditEvent struct {
	Action    string
	UserID    string
	SessionID string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// AuditStore persists audit events. The handler always logs them too.
type AuditStore interface {
	InsertAudit(ctx context.Context, ev AuditEvent) error
}

// PostgresAudit writes events to <schema>.audit_log.
type PostgresAudit struct {
	pool  *pgxpool.Pool
	table string
}

var _ AuditStore = (*PostgresAudit)(nil)

func NewPostgresAudit(pool *pgxpool.Pool, schema string) *PostgresAudit {
	if schema == "" {
		schema = "projectbank"
	}
	return &PostgresAudit{pool: pool, table: pgx.Identifier{schema, "audit_log"}.Sanitize()}
}

// EnsureSchema creates the audit_log table if it does not exist.
func (a *PostgresAudit) EnsureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  user_id TEXT NULL,
  session_id TEXT NULL,
  action TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  ip TEXT NULL,
  user_agent TEXT NULL,
  meta JSONB NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_log_action_created ON %s (action, created_at);
`, a.table, a.table))
	return err
}

func (a *PostgresAudit) InsertAudit(ctx context.Context, ev AuditEvent) error {
	var ipVal any
	if ev.IP != nil {
		ipVal = ev.IP.String()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO `+a.table+` (
			user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`, trimOrNil(ev.UserID), trimOrNil(ev.SessionID), ev.Action, ev.At, ipVal, trimOrNil(ev.UserAgent), metaVal)
	return err
}

func (h *Handler) auditLoginFailed(ctx context.Context, ip net.IP, ua, email, reason string) {
	h.audit(ctx, AuditEvent{Action: "auth.login.failed", IP: ip, UserAgent: ua, Meta: map[string]any{
		"email":  email,
		"reason": reason,
	}})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, ip net.IP, ua, email string) {
	h.audit(ctx, AuditEvent{Action: "auth.login.success", UserID: userID, IP: ip, UserAgent: ua, Meta: map[string]any{
		"email": email,
	}})
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua, email string, retryAfter time.Duration) {
	h.audit(ctx, AuditEvent{Action: "auth.login.rate_limited", IP: ip, UserAgent: ua, Meta: map[string]any{
		"email":         email,
		"retry_after_s": int64(retryAfter.Seconds()),
	}})
}

func (h *Handler) auditRegistered(ctx context.Context, userID string, ip net.IP, ua string) {
	h.audit(ctx, AuditEvent{Action: "auth.register", UserID: userID, IP: ip, UserAgent: ua})
}

func (h *Handler) auditLogout(ctx context.Context, ip net.IP, ua string) {
	h.audit(ctx, AuditEvent{Action: "auth.logout", IP: ip, UserAgent: ua})
}

func (h *Handler) auditLogoutAll(ctx context.Context, ip net.IP, ua string) {
	h.audit(ctx, AuditEvent{Action: "auth.logout_all", IP: ip, UserAgent: ua})
}

func (h *Handler) audit(ctx context.Context, ev AuditEvent) {
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.Action == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	attrs := []any{"action", ev.Action}
	if ev.UserID != "" {
		attrs = append(attrs, "user_id", ev.UserID)
	}
	if ev.IP != nil {
		attrs = append(attrs, "ip", ev.IP.String())
	}
	h.log.Info("auth.audit", attrs...)

	if h.auditStore == nil {
		return
	}
	if err := h.auditStore.InsertAudit(ctx, ev); err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", ev.Action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
