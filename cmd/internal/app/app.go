// Package app wires the Project Bank server runtime: config, logging, stores,
// the auth API and the portal.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"projectbank/cmd/identity"
	"projectbank/cmd/internal/auth/api"
	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/metrics"
	"projectbank/cmd/internal/portal"
	"projectbank/cmd/security/token"
)

const setupTimeout = 10 * time.Second

// App is the server runtime: it owns the HTTP server wiring and every store
// the portal and the auth API depend on.
type App struct {
	cfg Config
	log Logger

	metrics *metrics.Metrics

	dbPool *pgxpool.Pool
	rdb    *redis.Client

	portal *portal.Server
	auth   *api.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}
	if err := a.connect(ctx); err != nil {
		a.close()
		return nil, err
	}

	authn, local, err := a.newAuthenticator(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	pcfg, err := portal.LoadConfigFromEnv()
	if err != nil {
		a.close()
		return nil, err
	}
	a.portal, err = portal.NewServer(pcfg, authn, portal.WithLogger(log), portal.WithMetrics(a.metrics))
	if err != nil {
		a.close()
		return nil, err
	}

	if local != nil && cfg.ServeAuthAPI {
		if a.auth, err = a.newAuthAPI(ctx, local); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// connect opens the optional Postgres pool and Redis client.
func (a *App) connect(ctx context.Context) error {
	if a.cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.dbPool = pool
		a.log.Info("db.enabled.postgres")
	} else {
		a.log.Info("db.disabled.inmemory_store")
	}

	if a.cfg.RedisURL != "" {
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		a.rdb = rdb
		a.log.Info("redis.enabled", "addr", opts.Addr)
	}
	return nil
}

// newAuthenticator returns the remote client when PB_AUTH_API_URL is set,
// otherwise the in-process backend (also returned as local).
func (a *App) newAuthenticator(ctx context.Context) (backend.Authenticator, *backend.Service, error) {
	if a.cfg.AuthAPIURL != "" {
		c, err := backend.NewClient(a.cfg.AuthAPIURL)
		if err != nil {
			return nil, nil, err
		}
		a.log.Info("auth.backend.remote", "url", a.cfg.AuthAPIURL)
		return c, nil, nil
	}

	scfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	key, err := LoadTokenKey(a.cfg, a.log)
	if err != nil {
		return nil, nil, err
	}
	tm, err := token.NewManager(token.Config{Key: key, Issuer: scfg.Issuer, Leeway: scfg.ClockSkew})
	if err != nil {
		return nil, nil, err
	}

	users, err := a.newUserStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	sessions, err := a.newSessionStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc, err := backend.NewService(users, session.NewService(scfg, sessions, tm), backend.WithLogger(a.log))
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("auth.backend.local", "session_store", a.cfg.SessionStore)
	return svc, svc, nil
}

func (a *App) newUserStore(ctx context.Context) (identity.Store, error) {
	if a.dbPool == nil {
		return identity.NewMemoryStore(identity.DefaultHasher()), nil
	}
	st, err := identity.NewPostgresStore(a.dbPool, identity.WithSchema(a.cfg.DBSchema))
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("identity schema: %w", err)
	}
	return st, nil
}

func (a *App) newSessionStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.SessionStore {
	case StoreRedis:
		if a.rdb == nil {
			return nil, errors.New("session store redis: no redis client")
		}
		return session.NewRedisStore(a.rdb, a.cfg.RedisPrefix), nil
	case StorePostgres:
		if a.dbPool == nil {
			return nil, errors.New("session store postgres: no database pool")
		}
		st := session.NewPostgresStore(a.dbPool, a.cfg.DBSchema)
		if err := st.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("session schema: %w", err)
		}
		return st, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func (a *App) newAuthAPI(ctx context.Context, svc *backend.Service) (*api.Handler, error) {
	acfg, err := api.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	opts := []api.HandlerOption{api.WithObserver(a.metrics)}
	if a.rdb != nil {
		opts = append(opts, api.WithFailureLog(api.NewRedisFailureLog(a.rdb, a.cfg.RedisPrefix, acfg.FailureRetention())))
	}
	if a.dbPool != nil {
		audit := api.NewPostgresAudit(a.dbPool, a.cfg.DBSchema)
		if err := audit.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("audit schema: %w", err)
		}
		opts = append(opts, api.WithAuditStore(audit))
	}
	return api.NewHandler(a.log, svc, acfg, opts...)
}

// Handler builds the full HTTP handler chain.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.rdb, a.metrics, a.portal, a.auth)
	return WithRequestLogging(WithSecurityHeaders(mux), a.log, a.metrics)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.portal.Run(sweepCtx)

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"url", base,
		"status_stream", wsBaseURL(base)+"/ws/auth",
		"db_enabled", a.dbPool != nil,
		"redis_enabled", a.rdb != nil,
		"auth_api", a.auth != nil,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

// close releases the pool and the Redis client.
func (a *App) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis.close.fail", "err", err)
		}
		a.rdb = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can reach.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "ws://" + strings.TrimPrefix(base, "//")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}
