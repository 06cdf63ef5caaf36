package session

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config defines runtime configuration for portal sessions.
type Config struct {
	// Issuer is the "iss" claim of session tokens.
	Issuer string `env:"PB_AUTH_ISSUER" envDefault:"projectbank"`

	// TTL is the lifetime of a normal session.
	TTL time.Duration `env:"PB_SESSION_TTL" envDefault:"12h"`

	// RememberTTL is the lifetime when the student ticks "remember me".
	RememberTTL time.Duration `env:"PB_SESSION_REMEMBER_TTL" envDefault:"720h"`

	// ClockSkew is the tolerated skew when checking token expiry.
	ClockSkew time.Duration `env:"PB_SESSION_CLOCK_SKEW" envDefault:"30s"`
}

// DefaultConfig returns the defaults used when no environment is set.
func DefaultConfig() Config {
	return Config{
		Issuer:      "projectbank",
		TTL:         12 * time.Hour,
		RememberTTL: 30 * 24 * time.Hour,
		ClockSkew:   30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from PB_* variables.
// Returns ErrConfig if any value is malformed or out of range.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, ErrConfig
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.TTL <= 0, c.RememberTTL <= 0:
		return ErrConfig
	case c.RememberTTL < c.TTL:
		return ErrConfig
	case c.ClockSkew < 0 || c.ClockSkew > 2*time.Minute:
		return ErrConfig
	}
	return nil
}

func (c Config) ttl(rememberMe bool) time.Duration {
	if rememberMe {
		return c.RememberTTL
	}
	return c.TTL
}
