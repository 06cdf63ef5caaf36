package portal

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls cookies, visitor lifetime and the status stream.
type Config struct {
	SessionCookie  string `env:"SESSION_COOKIE" envDefault:"pb_session"`
	VisitorCookie  string `env:"VISITOR_COOKIE" envDefault:"pb_visitor"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieSameSite string `env:"COOKIE_SAMESITE" envDefault:"lax"`
	TrustProxy     bool   `env:"TRUST_PROXY" envDefault:"false"`

	VisitorIdleTTL time.Duration `env:"VISITOR_IDLE_TTL" envDefault:"30m"`
	SweepInterval  time.Duration `env:"VISITOR_SWEEP_INTERVAL" envDefault:"1m"`
	MaxVisitors    int           `env:"MAX_VISITORS" envDefault:"10000"`

	// RestoreWait bounds how long a request waits for a new visitor's
	// restore before the loading placeholder is served instead.
	RestoreWait time.Duration `env:"RESTORE_WAIT" envDefault:"1500ms"`

	// FormRateLimit caps login and registration posts per visitor per window.
	FormRateLimit  int           `env:"FORM_RATE_LIMIT" envDefault:"10"`
	FormRateWindow time.Duration `env:"FORM_RATE_WINDOW" envDefault:"1m"`

	AllowedOrigins []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost,http://127.0.0.1"`
	WSWriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"5s"`
	WSHeartbeat    time.Duration `env:"WS_HEARTBEAT_INTERVAL" envDefault:"25s"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	var cfg Config
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg.clamp()
}

// LoadConfigFromEnv reads PB_PORTAL_* variables over the defaults.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PB_PORTAL_"}); err != nil {
		return Config{}, fmt.Errorf("portal config: %w", err)
	}
	return cfg.clamp(), nil
}

func (c Config) clamp() Config {
	if c.SessionCookie == "" {
		c.SessionCookie = "pb_session"
	}
	if c.VisitorCookie == "" || c.VisitorCookie == c.SessionCookie {
		c.VisitorCookie = c.SessionCookie + "_visitor"
	}
	if c.VisitorIdleTTL <= 0 {
		c.VisitorIdleTTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.MaxVisitors <= 0 {
		c.MaxVisitors = defaultMaxVisitors
	}
	if c.RestoreWait < 0 {
		c.RestoreWait = 0
	}
	if c.FormRateLimit <= 0 {
		c.FormRateLimit = defaultFormLimit
	}
	if c.FormRateWindow <= 0 {
		c.FormRateWindow = defaultFormWindow
	}
	if c.WSWriteTimeout <= 0 {
		c.WSWriteTimeout = 5 * time.Second
	}
	if c.WSHeartbeat <= 0 {
		c.WSHeartbeat = 25 * time.Second
	}
	// Browsers drop SameSite=None cookies that are not Secure.
	if c.sameSite() == http.SameSiteNoneMode {
		c.CookieSecure = true
	}
	return c
}

func (c Config) sameSite() http.SameSite {
	return parseSameSite(c.CookieSameSite)
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}
