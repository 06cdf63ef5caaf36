package portal

import (
	"context"
	"sync"

	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
)

// visitorBackend binds an Authenticator to one visitor: restore uses the
// visitor's session token and a successful login replaces it.
type visitorBackend struct {
	auth backend.Authenticator

	mu    sync.Mutex
	token string
	dev   session.DeviceContext
}

var _ authstate.Backend = (*visitorBackend)(nil)

func newVisitorBackend(auth backend.Authenticator, token string, dev session.DeviceContext) *visitorBackend {
	return &visitorBackend{auth: auth, token: token, dev: dev}
}

func (b *visitorBackend) RestoreSession(ctx context.Context) (*authstate.Outcome, error) {
	tok := b.Token()
	if tok == "" {
		return nil, nil
	}
	out, err := b.auth.Resume(ctx, tok)
	if err != nil {
		return nil, err
	}
	if out == nil || !out.Success {
		b.swapToken(tok, "")
		return nil, nil
	}
	return out, nil
}

func (b *visitorBackend) Authenticate(ctx context.Context, c authstate.Credentials) (authstate.Outcome, error) {
	b.mu.Lock()
	dev := b.dev
	b.mu.Unlock()
	dev.RememberMe = c.RememberMe

	out, err := b.auth.Authenticate(ctx, c, dev)
	if err != nil {
		return authstate.Outcome{}, err
	}
	if out.Success && out.Token != "" {
		b.mu.Lock()
		b.token = out.Token
		b.mu.Unlock()
	}
	return out, nil
}

func (b *visitorBackend) CreateAccount(ctx context.Context, r authstate.Registration) (authstate.Outcome, error) {
	return b.auth.CreateAccount(ctx, r)
}

func (b *visitorBackend) Token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// takeToken clears and returns the current token.
func (b *visitorBackend) takeToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := b.token
	b.token = ""
	return tok
}

// swapToken replaces old with next unless a login already replaced it.
func (b *visitorBackend) swapToken(old, next string) {
	b.mu.Lock()
	if b.token == old {
		b.token = next
	}
	b.mu.Unlock()
}

func (b *visitorBackend) setDevice(dev session.DeviceContext) {
	b.mu.Lock()
	b.dev = dev
	b.mu.Unlock()
}
