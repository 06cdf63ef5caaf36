package backend

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"projectbank/cmd/identity"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
)

const tracerName = "projectbank/auth/backend"

// Service is the in-process Authenticator.
type Service struct {
	log      *slog.Logger
	users    identity.Store
	hasher   identity.PasswordHasher
	sessions *session.Service
	tracer   trace.Tracer

	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHasher overrides the password hasher (default identity.DefaultHasher()).
func WithHasher(h identity.PasswordHasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// NewService wires users and sessions into an Authenticator.
func NewService(users identity.Store, sessions *session.Service, opts ...ServiceOption) (*Service, error) {
	if users == nil || sessions == nil {
		return nil, errors.New("backend: users and sessions are required")
	}

	s := &Service{
		log:      slog.Default(),
		users:    users,
		hasher:   identity.DefaultHasher(),
		sessions: sessions,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if h, err := s.hasher.Hash("Dummy-password-for-timing-0"); err == nil {
		s.dummyHash = h
	}
	return s, nil
}

// Resume restores the session named by token.
func (s *Service) Resume(ctx context.Context, token string) (*authstate.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "backend.Resume")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	row, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if isInactive(err) {
			span.SetAttributes(attribute.String("session.state", "inactive"))
			return nil, nil
		}
		return nil, spanError(span, err)
	}

	u, err := s.users.GetUserByID(ctx, row.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			return nil, nil
		}
		return nil, spanError(span, err)
	}

	id := toIdentity(u)
	span.SetAttributes(attribute.String("user.id", u.ID))
	return &authstate.Outcome{
		Success:   true,
		Identity:  &id,
		Token:     token,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Authenticate checks credentials and issues a session on success.
func (s *Service) Authenticate(ctx context.Context, c authstate.Credentials, dev session.DeviceContext) (authstate.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "backend.Authenticate")
	defer span.End()

	email := identity.NormalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return failed(MsgInvalidCredentials), nil
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			if s.dummyHash != "" {
				_, _ = s.hasher.Verify(s.dummyHash, c.Password)
			}
			s.log.Info("auth.login.fail", "reason", "not_found")
			return failed(MsgInvalidCredentials), nil
		}
		return authstate.Outcome{}, spanError(span, err)
	}

	if err := identity.CheckPassword(s.hasher, u, c.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			s.log.Info("auth.login.fail", "reason", "bad_password", "user_id", u.ID)
			return failed(MsgInvalidCredentials), nil
		}
		return authstate.Outcome{}, spanError(span, err)
	}

	dev.RememberMe = c.RememberMe
	issued, err := s.sessions.Issue(ctx, u.ID, dev)
	if err != nil {
		return authstate.Outcome{}, spanError(span, err)
	}

	s.log.Info("auth.login.ok", "user_id", u.ID, "session_id", issued.SessionID)
	span.SetAttributes(attribute.String("user.id", u.ID))

	id := toIdentity(u)
	return authstate.Outcome{
		Success:   true,
		Identity:  &id,
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	}, nil
}

// CreateAccount registers a student. It does not sign them in.
func (s *Service) CreateAccount(ctx context.Context, r authstate.Registration) (authstate.Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "backend.CreateAccount")
	defer span.End()

	u, err := s.users.CreateUser(ctx, identity.CreateUserInput{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		RollNumber: r.RollNumber,
		Department: r.Department,
		Semester:   r.Semester,
		Password:   r.Password,
	})
	if err != nil {
		switch {
		case identity.ConflictField(err) == "email":
			return failed(MsgEmailTaken), nil
		case identity.ConflictField(err) == "roll_number":
			return failed(MsgRollNumberTaken), nil
		case identity.IsInvalidInput(err):
			s.log.Info("auth.register.invalid", "err", err)
			return failed(MsgInvalidDetails), nil
		default:
			return authstate.Outcome{}, spanError(span, err)
		}
	}

	s.log.Info("auth.register.ok", "user_id", u.ID)
	id := toIdentity(u)
	return authstate.Outcome{Success: true, Identity: &id}, nil
}

// Logout revokes the session named by token.
func (s *Service) Logout(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "backend.Logout")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return spanError(span, err)
	}
	return nil
}

// LogoutAll revokes every session of the user owning token.
func (s *Service) LogoutAll(ctx context.Context, token string) error {
	ctx, span := s.tracer.Start(ctx, "backend.LogoutAll")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	row, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if isInactive(err) {
			return nil
		}
		return spanError(span, err)
	}
	if err := s.sessions.RevokeAll(ctx, row.UserID); err != nil {
		return spanError(span, err)
	}
	span.SetAttributes(attribute.String("user.id", row.UserID))
	s.log.Info("auth.logout_all.ok", "user_id", row.UserID)
	return nil
}

func toIdentity(u identity.User) authstate.Identity {
	return authstate.Identity{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		Email:       u.Email,
		RollNumber:  u.RollNumber,
	}
}

func isInactive(err error) bool {
	return errors.Is(err, session.ErrInvalidToken) ||
		errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrSessionExpired) ||
		errors.Is(err, session.ErrSessionRevoked)
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
