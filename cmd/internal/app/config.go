package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config contains all runtime configuration loaded from PB_* environment variables.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogFormat is "json" or "pretty".
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogColor  bool   `env:"LOG_COLOR" envDefault:"false"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBSchema    string `env:"DB_SCHEMA" envDefault:"projectbank"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"0"`

	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"pb"`

	// SessionStore picks where sessions live: memory, redis or postgres.
	// Empty selects postgres when a database is configured, else memory.
	SessionStore string `env:"SESSION_STORE"`

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool `env:"READINESS_REQUIRE_DB" envDefault:"false"`

	// If true, PB_TOKEN_KEY must be set; otherwise a random key is generated
	// and sessions do not survive a restart.
	RequireTokenKey bool `env:"REQUIRE_TOKEN_KEY" envDefault:"false"`

	// AuthAPIURL points the portal at a remote auth API instead of the
	// in-process backend.
	AuthAPIURL string `env:"AUTH_API_URL"`

	// ServeAuthAPI mounts /api/auth/* on this server.
	ServeAuthAPI bool `env:"SERVE_AUTH_API" envDefault:"true"`

	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
	CORSMaxAgeSeconds    int      `env:"CORS_MAX_AGE_SECONDS" envDefault:"600"`
}

// LoadConfig loads Config from PB_* variables over the defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PB_"}); err != nil {
		return Config{}, fmt.Errorf("app config: %w", err)
	}
	cfg = cfg.clamp()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) clamp() Config {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "pretty" {
		c.LogFormat = "json"
	}
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.AuthAPIURL = strings.TrimSpace(c.AuthAPIURL)

	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	if c.SessionStore == "" {
		c.SessionStore = StoreMemory
		if c.DatabaseURL != "" {
			c.SessionStore = StorePostgres
		}
	}
	if c.DBSchema == "" {
		c.DBSchema = "projectbank"
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = "pb"
	}
	if c.DBMinConns < 0 {
		c.DBMinConns = 0
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		c.DBMinConns = c.DBMaxConns
	}
	if c.CORSMaxAgeSeconds < 0 {
		c.CORSMaxAgeSeconds = 0
	}
	return c
}

func (c Config) validate() error {
	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("app config: PB_SESSION_STORE=redis requires PB_REDIS_URL")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("app config: PB_SESSION_STORE=postgres requires PB_DATABASE_URL")
		}
	default:
		return fmt.Errorf("app config: unknown PB_SESSION_STORE %q", c.SessionStore)
	}
	return nil
}
