package authstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Observer receives state transitions and action results. metrics.AuthMetrics
// implements it.
type Observer interface {
	ObserveTransition(from, to Status)
	ObserveAction(action string, ok bool)
}

// Provider is the single owner of one visitor's Session.
// All methods are safe for concurrent use; concurrent logins resolve as last
// write wins.
type Provider struct {
	backend  Backend
	log      *slog.Logger
	observer Observer

	mu      sync.Mutex
	session Session
	subs    map[int]chan Session
	nextSub int

	restoreOnce sync.Once
	settleOnce  sync.Once
	settled     chan struct{}
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.log = l
		}
	}
}

// WithObserver attaches an Observer.
func WithObserver(o Observer) Option {
	return func(p *Provider) { p.observer = o }
}

// New returns a Provider in the unknown state. Call Restore (or use Start).
func New(backend Backend, opts ...Option) *Provider {
	p := &Provider{
		backend: backend,
		log:     slog.Default(),
		subs:    make(map[int]chan Session),
		settled: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start returns a Provider whose restore is already running in the background.
// The restore is detached from ctx cancellation so it outlives the request
// that created the provider.
func Start(ctx context.Context, backend Backend, opts ...Option) *Provider {
	p := New(backend, opts...)
	rctx := context.WithoutCancel(ctx)
	go p.Restore(rctx)
	return p
}

// Session returns the current snapshot.
func (p *Provider) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *Provider) IsAuthenticated() bool { return p.Session().IsAuthenticated() }
func (p *Provider) Loading() bool         { return p.Session().Loading() }

// Settled is closed once the session first leaves the loading state, either
// because restore resolved or because an action settled it earlier.
func (p *Provider) Settled() <-chan struct{} { return p.settled }

// Subscribe returns a channel that receives the latest Session after every
// change. Slow readers only see the most recent value. cancel closes the channel.
func (p *Provider) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Restore runs the session restore exactly once:
// unknown -> checking -> authenticated | anonymous. Later calls wait for the
// first one and return the resulting snapshot. Backend errors and panics
// resolve to anonymous.
func (p *Provider) Restore(ctx context.Context) Session {
	p.restoreOnce.Do(func() { p.restore(ctx) })
	return p.Session()
}

func (p *Provider) restore(ctx context.Context) {
	p.mu.Lock()
	started := p.session.Status() == StatusUnknown
	if started {
		p.setLocked(Checking())
	}
	p.mu.Unlock()

	if !started {
		// An action already settled the session; nothing to restore into.
		return
	}

	var out *Outcome
	err := p.guard(func() error {
		var err error
		out, err = p.backend.RestoreSession(ctx)
		return err
	})

	next := Anonymous()
	switch {
	case err != nil:
		p.log.Warn("authstate.restore.fail", slog.Any("err", err))
	case out != nil && out.Success && out.Identity != nil:
		next = Authenticated(*out.Identity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session.Status() != StatusChecking {
		p.log.Debug("authstate.restore.discarded", slog.String("status", p.session.Status().String()))
		return
	}
	p.setLocked(next)
	p.log.Debug("authstate.restore.done", slog.String("status", next.Status().String()))
}

// Login authenticates and, on success, switches to authenticated.
// On failure the session is left exactly as it was and the error is a *Failure.
func (p *Provider) Login(ctx context.Context, c Credentials) (Outcome, error) {
	var out Outcome
	err := p.guard(func() error {
		var err error
		out, err = p.backend.Authenticate(ctx, c)
		return err
	})
	if err != nil {
		p.log.Error("authstate.login.error", slog.Any("err", err))
		p.observe("login", false)
		return Outcome{}, &Failure{Action: "login", Reason: GenericReason, Err: err}
	}

	if !out.Success || out.Identity == nil {
		reason := out.Message
		if reason == "" {
			reason = DefaultLoginReason
		}
		p.log.Info("authstate.login.fail", slog.String("reason", reason))
		p.observe("login", false)
		return out, &Failure{Action: "login", Reason: reason}
	}

	p.mu.Lock()
	p.setLocked(Authenticated(*out.Identity))
	p.mu.Unlock()

	p.log.Info("authstate.login.ok", slog.String("user_id", out.Identity.ID))
	p.observe("login", true)
	return out, nil
}

// Register creates an account. It never changes the session: the student
// signs in separately afterwards.
func (p *Provider) Register(ctx context.Context, r Registration) (Outcome, error) {
	var out Outcome
	err := p.guard(func() error {
		var err error
		out, err = p.backend.CreateAccount(ctx, r)
		return err
	})
	if err != nil {
		p.log.Error("authstate.register.error", slog.Any("err", err))
		p.observe("register", false)
		return Outcome{}, &Failure{Action: "register", Reason: GenericReason, Err: err}
	}

	if !out.Success {
		reason := out.Message
		if reason == "" {
			reason = DefaultRegisterReason
		}
		p.log.Info("authstate.register.fail", slog.String("reason", reason))
		p.observe("register", false)
		return out, &Failure{Action: "register", Reason: reason}
	}

	p.log.Info("authstate.register.ok")
	p.observe("register", true)
	return out, nil
}

// Logout switches to anonymous. It is synchronous, always succeeds and is
// idempotent.
func (p *Provider) Logout() {
	p.mu.Lock()
	p.setLocked(Anonymous())
	p.mu.Unlock()

	p.observe("logout", true)
}

// setLocked replaces the session and fans out the change. p.mu must be held.
func (p *Provider) setLocked(next Session) {
	prev := p.session
	if prev.equal(next) {
		return
	}
	p.session = next

	if !next.Loading() {
		p.settleOnce.Do(func() { close(p.settled) })
	}
	if p.observer != nil {
		p.observer.ObserveTransition(prev.Status(), next.Status())
	}

	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

func (p *Provider) observe(action string, ok bool) {
	if p.observer != nil {
		p.observer.ObserveAction(action, ok)
	}
}

// guard runs fn and turns a panic into an error.
func (p *Provider) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("authstate: backend panic: %v", r)
		}
	}()
	return fn()
}
