// Package api serves the JSON auth API consumed by backend.Client:
// login, registration, session lookup and logout under /api/auth/.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"projectbank/cmd/identity"
	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
	authv1 "projectbank/shared/contracts/auth/v1"
)

// Observer receives throttling signals (see metrics.Metrics).
type Observer interface {
	ObserveRateLimited(action string)
}

// Handler wires HTTP auth endpoints to an Authenticator.
type Handler struct {
	log *slog.Logger
	cfg Config

	auth       backend.Authenticator
	failures   FailureLog
	auditStore AuditStore
	observer   Observer

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithFailureLog overrides the in-memory failure log.
func WithFailureLog(l FailureLog) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.failures = l
		}
	}
}

// WithAuditStore persists audit events in addition to logging them.
func WithAuditStore(s AuditStore) HandlerOption {
	return func(h *Handler) {
		if s != nil {
			h.auditStore = s
		}
	}
}

func WithObserver(o Observer) HandlerOption {
	return func(h *Handler) {
		if o != nil {
			h.observer = o
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, auth backend.Authenticator, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if auth == nil {
		return nil, errors.New("auth api: nil authenticator")
	}
	if log == nil {
		log = slog.Default()
	}

	cfg = cfg.clamp()
	h := &Handler{
		log:  log,
		cfg:  cfg,
		auth: auth,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	if h.failures == nil {
		h.failures = NewMemoryFailureLog(cfg.retention())
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc(authv1.PathLogin, h.handleLogin)
	mux.HandleFunc(authv1.PathRegister, h.handleRegister)
	mux.HandleFunc(authv1.PathSession, h.handleSession)
	mux.HandleFunc(authv1.PathLogout, h.handleLogout)
	mux.HandleFunc(authv1.PathLogoutAll, h.handleLogoutAll)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req authv1.LoginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, backend.CodeInvalidRequest, "email and password are required")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := ClientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	if blocked, retryAfter, err := h.checkLoginThrottle(ctx, ip, email, now); err != nil {
		h.log.Error("auth.login.throttle.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return
	} else if blocked {
		h.auditLoginRateLimited(ctx, ip, ua, email, retryAfter)
		if h.observer != nil {
			h.observer.ObserveRateLimited("login")
		}
		writeRateLimited(w, retryAfter)
		return
	}

	dev := session.DeviceContext{RememberMe: req.RememberMe, UserAgent: ua}
	if ip != nil {
		dev.IP = ip.String()
	}
	out, err := h.auth.Authenticate(ctx, authstate.Credentials{Email: email, Password: req.Password, RememberMe: req.RememberMe}, dev)
	if err != nil {
		h.log.Error("auth.login.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !out.Success {
		h.recordLoginFailure(ctx, ip, email, now)
		h.auditLoginFailed(ctx, ip, ua, email, "invalid_credentials")
		writeError(w, http.StatusUnauthorized, backend.CodeInvalidCredentials, out.Message)
		return
	}

	if err := h.failures.Clear(ctx, emailKey(email)); err != nil {
		h.log.Warn("auth.login.throttle_clear.fail", "err", err)
	}
	userID := ""
	if out.Identity != nil {
		userID = out.Identity.ID
	}
	h.auditLoginSuccess(ctx, userID, ip, ua, email)

	writeJSON(w, http.StatusOK, authv1.LoginResponse{
		User:    toUserResponse(out.Identity),
		Session: toSessionResponse(out),
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req authv1.RegisterRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	out, err := h.auth.CreateAccount(ctx, authstate.Registration{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		RollNumber: req.RollNumber,
		Department: req.Department,
		Semester:   req.Semester,
		Password:   req.Password,
	})
	if err != nil {
		h.log.Error("auth.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if !out.Success {
		status, code := registerFailure(out.Message)
		writeError(w, status, code, out.Message)
		return
	}

	if out.Identity != nil {
		h.auditRegistered(ctx, out.Identity.ID, ClientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	}
	writeJSON(w, http.StatusCreated, authv1.RegisterResponse{User: toUserResponse(out.Identity)})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := h.sessionToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session token")
		return
	}

	out, err := h.auth.Resume(r.Context(), token)
	if err != nil {
		h.log.Error("auth.session.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	if out == nil || !out.Success {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid session")
		return
	}

	writeJSON(w, http.StatusOK, authv1.SessionResponse{
		User:      toUserResponse(out.Identity),
		ExpiresAt: out.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if err := h.auth.Logout(ctx, h.sessionToken(r)); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogout(ctx, ClientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	w.WriteHeader(http.StatusNoContent)
}

// handleLogoutAll signs the caller out on every device.
func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if err := h.auth.LogoutAll(ctx, h.sessionToken(r)); err != nil {
		h.log.Error("auth.logout_all.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.auditLogoutAll(ctx, ClientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	w.WriteHeader(http.StatusNoContent)
}
