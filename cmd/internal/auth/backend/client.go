package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
	authv1 "projectbank/shared/contracts/auth/v1"
)

// ErrUpstream reports an auth API response the client could not interpret.
var ErrUpstream = errors.New("backend: auth api failure")

const maxResponseBytes = 1 << 20

// Client is an Authenticator backed by a remote auth API.
type Client struct {
	base   *url.URL
	http   *http.Client
	tracer trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient returns a Client for the auth API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("backend: base url must be absolute http(s): %q", baseURL)
	}

	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 10 * time.Second},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) Resume(ctx context.Context, token string) (*authstate.Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "backend.Client.Resume")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	var out authv1.SessionResponse
	status, apiErr, err := c.do(ctx, http.MethodGet, authv1.PathSession, token, nil, session.DeviceContext{}, &out)
	if err != nil {
		return nil, spanError(span, err)
	}
	switch {
	case status == http.StatusOK:
		id := fromUser(out.User)
		return &authstate.Outcome{Success: true, Identity: &id, Token: token, ExpiresAt: out.ExpiresAt}, nil
	case status == http.StatusUnauthorized:
		return nil, nil
	default:
		return nil, spanError(span, upstreamError(status, apiErr))
	}
}

func (c *Client) Authenticate(ctx context.Context, cr authstate.Credentials, dev session.DeviceContext) (authstate.Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "backend.Client.Authenticate")
	defer span.End()

	req := authv1.LoginRequest{Email: cr.Email, Password: cr.Password, RememberMe: cr.RememberMe}
	var out authv1.LoginResponse
	status, apiErr, err := c.do(ctx, http.MethodPost, authv1.PathLogin, "", req, dev, &out)
	if err != nil {
		return authstate.Outcome{}, spanError(span, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	switch {
	case status == http.StatusOK:
		id := fromUser(out.User)
		return authstate.Outcome{
			Success:   true,
			Identity:  &id,
			Token:     out.Session.Token,
			ExpiresAt: out.Session.ExpiresAt,
		}, nil
	case status >= 400 && status < 500 && apiErr != nil:
		return failed(messageFor(apiErr)), nil
	default:
		return authstate.Outcome{}, spanError(span, upstreamError(status, apiErr))
	}
}

func (c *Client) CreateAccount(ctx context.Context, r authstate.Registration) (authstate.Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "backend.Client.CreateAccount")
	defer span.End()

	req := authv1.RegisterRequest{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Email:      r.Email,
		RollNumber: r.RollNumber,
		Department: r.Department,
		Semester:   r.Semester,
		Password:   r.Password,
	}
	var out authv1.RegisterResponse
	status, apiErr, err := c.do(ctx, http.MethodPost, authv1.PathRegister, "", req, session.DeviceContext{}, &out)
	if err != nil {
		return authstate.Outcome{}, spanError(span, err)
	}

	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		id := fromUser(out.User)
		return authstate.Outcome{Success: true, Identity: &id}, nil
	case status >= 400 && status < 500 && apiErr != nil:
		return failed(messageFor(apiErr)), nil
	default:
		return authstate.Outcome{}, spanError(span, upstreamError(status, apiErr))
	}
}

func (c *Client) Logout(ctx context.Context, token string) error {
	ctx, span := c.tracer.Start(ctx, "backend.Client.Logout")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return nil
	}
	status, apiErr, err := c.do(ctx, http.MethodPost, authv1.PathLogout, token, nil, session.DeviceContext{}, nil)
	if err != nil {
		return spanError(span, err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return spanError(span, upstreamError(status, apiErr))
	}
	return nil
}

func (c *Client) LogoutAll(ctx context.Context, token string) error {
	ctx, span := c.tracer.Start(ctx, "backend.Client.LogoutAll")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return nil
	}
	status, apiErr, err := c.do(ctx, http.MethodPost, authv1.PathLogoutAll, token, nil, session.DeviceContext{}, nil)
	if err != nil {
		return spanError(span, err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return spanError(span, upstreamError(status, apiErr))
	}
	return nil
}

// do performs one API round trip. 2xx bodies decode into out; error
// envelopes are returned as apiErr.
func (c *Client) do(ctx context.Context, method, path, token string, body any, dev session.DeviceContext, out any) (int, *authv1.Error, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("backend: encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if dev.UserAgent != "" {
		req.Header.Set("User-Agent", dev.UserAgent)
	}
	if dev.IP != "" {
		req.Header.Set("X-Forwarded-For", dev.IP)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("backend: read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, nil, fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
			}
		}
		return resp.StatusCode, nil, nil
	}

	var env authv1.ErrorResponse
	if err := json.Unmarshal(data, &env); err != nil || env.Error.Code == "" {
		return resp.StatusCode, nil, nil
	}
	return resp.StatusCode, &env.Error, nil
}

func messageFor(e *authv1.Error) string {
	if msg := MessageForCode(e.Code); msg != "" {
		return msg
	}
	return e.Message
}

func upstreamError(status int, e *authv1.Error) error {
	if e != nil {
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, status, e.Code)
	}
	return fmt.Errorf("%w: status %d", ErrUpstream, status)
}

func fromUser(u authv1.User) authstate.Identity {
	return authstate.Identity{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		RollNumber:  u.RollNumber,
	}
}

// ToUser converts an identity to its wire form.
func ToUser(id authstate.Identity) authv1.User {
	return authv1.User{
		ID:          id.ID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
		RollNumber:  id.RollNumber,
	}
}
