package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"projectbank/cmd/internal/auth/api"
	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
	"projectbank/cmd/internal/guard"
	"projectbank/cmd/internal/metrics"
)

// Server serves the portal pages.
type Server struct {
	log      *slog.Logger
	cfg      Config
	auth     backend.Authenticator
	visitors *Registry
	metrics  *metrics.Metrics
	views    *views
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records guard decisions, auth actions and visitors.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer builds the portal over auth.
func NewServer(cfg Config, auth backend.Authenticator, opts ...ServerOption) (*Server, error) {
	if auth == nil {
		return nil, errors.New("portal: nil authenticator")
	}
	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	s := &Server{log: slog.Default(), cfg: cfg.clamp(), auth: auth, views: v}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	var (
		observer authstate.Observer
		gauge    prometheus.Gauge
	)
	if s.metrics != nil {
		observer, gauge = s.metrics, s.metrics.VisitorsActive
	}
	s.visitors = NewRegistry(s.log, auth, s.cfg.VisitorIdleTTL, observer, gauge)
	s.visitors.SetFormLimit(s.cfg.FormRateLimit, s.cfg.FormRateWindow)
	s.visitors.SetMaxVisitors(s.cfg.MaxVisitors)
	return s, nil
}

// Visitors exposes the registry so the caller can run its sweeper.
func (s *Server) Visitors() *Registry { return s.visitors }

// Run sweeps idle visitors until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.visitors.Run(ctx, s.cfg.SweepInterval)
}

// Register wires every portal route onto mux.
func (s *Server) Register(mux *http.ServeMux) {
	for _, p := range Pages {
		switch p.Name {
		case "login":
			mux.HandleFunc("GET "+p.Pattern, s.guarded(p, s.showLogin))
			mux.HandleFunc("POST "+p.Pattern, s.guarded(p, s.submitLogin))
		case "register":
			mux.HandleFunc("GET "+p.Pattern, s.guarded(p, s.showRegister))
			mux.HandleFunc("POST "+p.Pattern, s.guarded(p, s.submitRegister))
		default:
			mux.HandleFunc("GET "+p.Pattern, s.guarded(p, s.showPage))
		}
	}
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /ws/auth", s.handleStatusStream)
	mux.HandleFunc("/", s.handleNotFound)
}

type pageHandler func(w http.ResponseWriter, r *http.Request, p Page, v *Visitor, sess authstate.Session)

// guarded evaluates the route's rule before running h.
func (s *Server) guarded(p Page, h pageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var v *Visitor
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			v = s.readVisitor(w, r)
		} else {
			v = s.visitor(w, r)
		}
		sess := s.settle(r.Context(), v)

		d := guard.Decide(sess, p.Rule, r.URL.RequestURI())
		s.metrics.ObserveDecision(p.Rule.Requirement.String(), d.Action.String())

		switch d.Action {
		case guard.Placeholder:
			s.log.Debug("portal.guard.placeholder", "path", r.URL.Path, "visitor", v.ID)
			s.render(w, http.StatusOK, "loading", viewData{Page: p, Path: r.URL.RequestURI()})
		case guard.RedirectAction:
			loc := d.Redirect.Location()
			s.log.Debug("portal.guard.redirect", "path", r.URL.Path, "to", loc, "visitor", v.ID)
			http.Redirect(w, r, loc, d.Redirect.StatusCode(r.Method))
		default:
			h(w, r, p, v, sess)
		}
	}
}

// settle waits up to RestoreWait for the visitor's restore to finish.
func (s *Server) settle(ctx context.Context, v *Visitor) authstate.Session {
	select {
	case <-v.Provider.Settled():
		return v.Provider.Session()
	default:
	}
	if s.cfg.RestoreWait <= 0 {
		return v.Provider.Session()
	}

	t := time.NewTimer(s.cfg.RestoreWait)
	defer t.Stop()
	select {
	case <-v.Provider.Settled():
	case <-t.C:
	case <-ctx.Done():
	}
	return v.Provider.Session()
}

// visitor returns the caller's visitor, creating one when the cookie is
// missing or names a visitor that was swept.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request) *Visitor {
	dev := s.device(r)
	if v, ok := s.knownVisitor(r, dev); ok {
		return v
	}
	return s.createVisitor(w, r, dev)
}

// readVisitor is visitor for requests that keep no state. A browser with
// neither a live visitor nor a session cookie is anonymous, so it is served
// by a transient visitor and nothing is registered.
func (s *Server) readVisitor(w http.ResponseWriter, r *http.Request) *Visitor {
	dev := s.device(r)
	if v, ok := s.knownVisitor(r, dev); ok {
		return v
	}
	if s.sessionToken(r) == "" {
		return s.visitors.Transient(dev)
	}
	return s.createVisitor(w, r, dev)
}

func (s *Server) knownVisitor(r *http.Request, dev session.DeviceContext) (*Visitor, bool) {
	c, err := r.Cookie(s.cfg.VisitorCookie)
	if err != nil {
		return nil, false
	}
	return s.visitors.Get(c.Value, dev)
}

func (s *Server) createVisitor(w http.ResponseWriter, r *http.Request, dev session.DeviceContext) *Visitor {
	v := s.visitors.Create(s.sessionToken(r), dev)
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.VisitorCookie,
		Value:    v.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: s.cfg.sameSite(),
	})
	return v
}

func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(s.cfg.SessionCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func (s *Server) device(r *http.Request) session.DeviceContext {
	dev := session.DeviceContext{UserAgent: strings.TrimSpace(r.UserAgent())}
	if ip := api.ClientIP(r, s.cfg.TrustProxy); ip != nil {
		dev.IP = ip.String()
	}
	return dev
}

func (s *Server) setSessionCookie(w http.ResponseWriter, out authstate.Outcome, persistent bool) {
	c := &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    out.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: s.cfg.sameSite(),
	}
	if persistent && !out.ExpiresAt.IsZero() {
		c.Expires = out.ExpiresAt
	}
	http.SetCookie(w, c)
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: s.cfg.sameSite(),
	})
}

func (s *Server) baseData(p Page, v *Visitor, sess authstate.Session) viewData {
	d := viewData{Page: p, Flash: v.takeFlash()}
	if id, ok := sess.Identity(); ok {
		d.User = &id
	}
	return d
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data viewData) {
	if err := s.views.render(w, status, name, data); err != nil {
		s.log.Error("portal.render.fail", "template", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) showPage(w http.ResponseWriter, r *http.Request, p Page, v *Visitor, sess authstate.Session) {
	d := s.baseData(p, v, sess)
	if p.Name == "project" {
		d.ProjectID = r.PathValue("id")
	}
	s.render(w, http.StatusOK, p.Name, d)
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request, p Page, v *Visitor, sess authstate.Session) {
	d := s.baseData(p, v, sess)
	d.Next = guard.SafeReturnTo(r.URL.Query().Get(guard.ReturnToParam), "")
	s.render(w, http.StatusOK, "login", d)
}

func (s *Server) submitLogin(w http.ResponseWriter, r *http.Request, p Page, v *Visitor, sess authstate.Session) {
	form := parseLoginForm(r)
	d := s.baseData(p, v, sess)
	d.Login = loginForm{Email: form.Email, RememberMe: form.RememberMe}
	d.Next = guard.SafeReturnTo(form.Next, "")

	if !s.allowSubmit(v, "portal_login") {
		d.Error = backend.MsgRateLimited
		s.render(w, http.StatusTooManyRequests, "login", d)
		return
	}

	if err := form.Validate(); err != nil {
		d.Fields = fieldErrors(err)
		d.Error = firstError(d.Fields, []string{"email", "password"})
		s.render(w, http.StatusBadRequest, "login", d)
		return
	}

	out, err := v.Provider.Login(r.Context(), form.credentials())
	if err != nil {
		var f *authstate.Failure
		status := http.StatusUnauthorized
		d.Error = authstate.GenericReason
		if errors.As(err, &f) {
			d.Error = f.Reason
			if f.Unexpected() {
				status = http.StatusInternalServerError
			}
		}
		s.render(w, status, "login", d)
		return
	}

	s.setSessionCookie(w, out, form.RememberMe)
	v.setFlash(msgWelcomeBack)
	http.Redirect(w, r, guard.SafeReturnTo(form.Next, guard.DefaultLanding), http.StatusSeeOther)
}

func (s *Server) showRegister(w http.ResponseWriter, r *http.Request, p Page, v *Visitor, sess authstate.Session) {
	d := s.baseData(p, v, sess)
	d.Departments, d.Semesters = departments, semesters
	s.render(w, http.StatusOK, "register", d)
}

func (s *Server) submitRegister(w http.ResponseWriter, r *http.Request, p Page, v *Visitor, sess authstate.Session) {
	form := parseRegisterForm(r)
	d := s.baseData(p, v, sess)
	d.Departments, d.Semesters = departments, semesters
	d.Register = form
	d.Register.Password, d.Register.ConfirmPassword = "", ""

	if !s.allowSubmit(v, "portal_register") {
		d.Error = backend.MsgRateLimited
		s.render(w, http.StatusTooManyRequests, "register", d)
		return
	}

	if err := form.Validate(); err != nil {
		d.Fields = fieldErrors(err)
		d.Error = firstError(d.Fields, registerFieldOrder)
		s.render(w, http.StatusBadRequest, "register", d)
		return
	}

	if _, err := v.Provider.Register(r.Context(), form.registration()); err != nil {
		var f *authstate.Failure
		status := http.StatusConflict
		d.Error = authstate.GenericReason
		if errors.As(err, &f) {
			d.Error = f.Reason
			if f.Unexpected() {
				status = http.StatusInternalServerError
			}
		}
		s.render(w, status, "register", d)
		return
	}

	v.setFlash(msgRegistered)
	http.Redirect(w, r, guard.DefaultSignIn, http.StatusSeeOther)
}

// allowSubmit applies the visitor's form limiter.
func (s *Server) allowSubmit(v *Visitor, action string) bool {
	if v.forms.Allow(time.Now()) {
		return true
	}
	s.metrics.ObserveRateLimited(action)
	s.log.Info("portal.form.rate_limited", "action", action, "visitor", v.ID)
	return false
}

// handleLogout signs the visitor out and revokes the server-side session,
// or every session of the student when the form asks for scope=all.
// The revoke is best effort: the visitor is anonymous either way.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := s.visitor(w, r)
	tok := v.backend.takeToken()
	if tok == "" {
		tok = s.sessionToken(r)
	}
	everywhere := r.PostFormValue("scope") == "all"
	v.Provider.Logout()

	if tok != "" {
		revoke := s.auth.Logout
		if everywhere {
			revoke = s.auth.LogoutAll
		}
		if err := revoke(r.Context(), tok); err != nil {
			s.log.Warn("portal.logout.revoke.fail", "err", err, "visitor", v.ID, "everywhere", everywhere)
		}
	}
	s.clearSessionCookie(w)
	v.setFlash(msgSignedOut)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.log.Info("portal.not_found", "path", r.URL.Path)
	s.render(w, http.StatusNotFound, "not_found", viewData{Page: Page{Title: "Page Not Found"}})
}
