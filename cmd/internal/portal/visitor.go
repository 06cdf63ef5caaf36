package portal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
)

const defaultMaxVisitors = 10000

// Visitor is one browser's auth state.
type Visitor struct {
	ID       string
	Provider *authstate.Provider

	backend *visitorBackend
	forms   *formLimiter

	mu       sync.Mutex
	lastSeen time.Time
	flash    string
}

func (v *Visitor) touch(now time.Time, dev session.DeviceContext) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
	v.backend.setDevice(dev)
}

func (v *Visitor) idleSince(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.lastSeen)
}

// setFlash stores a one-shot notice for the next rendered page.
func (v *Visitor) setFlash(msg string) {
	v.mu.Lock()
	v.flash = msg
	v.mu.Unlock()
}

func (v *Visitor) takeFlash() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	msg := v.flash
	v.flash = ""
	return msg
}

// Registry owns the live visitors.
type Registry struct {
	log      *slog.Logger
	auth     backend.Authenticator
	idleTTL  time.Duration
	observer authstate.Observer
	gauge    prometheus.Gauge

	formLimit   int
	formWindow  time.Duration
	maxVisitors int

	mu       sync.Mutex
	visitors map[string]*Visitor

	now func() time.Time
}

// NewRegistry creates an empty registry. observer and gauge may be nil.
func NewRegistry(log *slog.Logger, auth backend.Authenticator, idleTTL time.Duration, observer authstate.Observer, gauge prometheus.Gauge) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log,
		auth:     auth,
		idleTTL:  idleTTL,
		observer: observer,
		gauge:    gauge,
		visitors: make(map[string]*Visitor),

		formLimit:   defaultFormLimit,
		formWindow:  defaultFormWindow,
		maxVisitors: defaultMaxVisitors,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetMaxVisitors caps the registry. Creating a visitor beyond the cap evicts
// the least recently seen one.
func (r *Registry) SetMaxVisitors(n int) {
	if n <= 0 {
		n = defaultMaxVisitors
	}
	r.mu.Lock()
	r.maxVisitors = n
	r.mu.Unlock()
}

// SetFormLimit applies to visitors created afterwards.
func (r *Registry) SetFormLimit(limit int, window time.Duration) {
	r.mu.Lock()
	r.formLimit, r.formWindow = limit, window
	r.mu.Unlock()
}

// Get returns the visitor with id and marks it as seen.
func (r *Registry) Get(id string, dev session.DeviceContext) (*Visitor, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	v, ok := r.visitors[id]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	v.touch(r.now(), dev)
	return v, true
}

// Create registers a new visitor and starts restoring the session named by
// token in the background.
func (r *Registry) Create(token string, dev session.DeviceContext) *Visitor {
	b := newVisitorBackend(r.auth, token, dev)
	opts := []authstate.Option{authstate.WithLogger(r.log)}
	if r.observer != nil {
		opts = append(opts, authstate.WithObserver(r.observer))
	}

	r.mu.Lock()
	limit, window := r.formLimit, r.formWindow
	r.mu.Unlock()

	v := &Visitor{
		ID:       uuid.NewString(),
		Provider: authstate.Start(context.Background(), b, opts...),
		backend:  b,
		forms:    newFormLimiter(limit, window),
		lastSeen: r.now(),
	}

	r.mu.Lock()
	evicted := 0
	for len(r.visitors) >= r.maxVisitors && r.evictOldestLocked() {
		evicted++
	}
	r.visitors[v.ID] = v
	n := len(r.visitors)
	r.mu.Unlock()

	r.setGauge(n)
	if evicted > 0 {
		r.log.Info("portal.visitors.evict", "evicted", evicted, "active", n)
	}
	return v
}

// Transient returns an anonymous visitor that is never registered. It serves
// reads from browsers that hold neither a visitor nor a session cookie.
func (r *Registry) Transient(dev session.DeviceContext) *Visitor {
	b := newVisitorBackend(r.auth, "", dev)
	p := authstate.New(b, authstate.WithLogger(r.log))
	p.Restore(context.Background())

	r.mu.Lock()
	limit, window := r.formLimit, r.formWindow
	r.mu.Unlock()

	return &Visitor{
		Provider: p,
		backend:  b,
		forms:    newFormLimiter(limit, window),
		lastSeen: r.now(),
	}
}

func (r *Registry) evictOldestLocked() bool {
	now := r.now()
	oldestID, oldest := "", time.Duration(-1)
	for id, v := range r.visitors {
		if idle := v.idleSince(now); idle > oldest {
			oldestID, oldest = id, idle
		}
	}
	if oldestID == "" {
		return false
	}
	delete(r.visitors, oldestID)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Sweep drops visitors idle for longer than the idle TTL.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	removed := 0
	for id, v := range r.visitors {
		if v.idleSince(now) > r.idleTTL {
			delete(r.visitors, id)
			removed++
		}
	}
	n := len(r.visitors)
	r.mu.Unlock()

	r.setGauge(n)
	if removed > 0 {
		r.log.Debug("portal.visitors.sweep", "removed", removed, "active", n)
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Registry) setGauge(n int) {
	if r.gauge != nil {
		r.gauge.Set(float64(n))
	}
}
