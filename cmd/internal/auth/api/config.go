package api

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config controls auth API behavior and throttling defaults.
type Config struct {
	TrustProxy   bool  `env:"TRUST_PROXY" envDefault:"false"`
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"65536"`

	// SessionCookie is read by /session and /logout when no bearer token is sent.
	SessionCookie string `env:"SESSION_COOKIE" envDefault:"pb_session"`

	LoginIPMax    int           `env:"LOGIN_IP_MAX" envDefault:"20"`
	LoginIPWindow time.Duration `env:"LOGIN_IP_WINDOW" envDefault:"5m"`

	// LoginEmailWindow is the lookback used to count failures per email.
	LoginEmailWindow time.Duration `env:"LOGIN_EMAIL_WINDOW" envDefault:"15m"`

	LockoutShortThreshold  int           `env:"LOGIN_LOCKOUT_SHORT_THRESHOLD" envDefault:"5"`
	LockoutShortDuration   time.Duration `env:"LOGIN_LOCKOUT_SHORT_DURATION" envDefault:"5m"`
	LockoutLongThreshold   int           `env:"LOGIN_LOCKOUT_LONG_THRESHOLD" envDefault:"10"`
	LockoutLongDuration    time.Duration `env:"LOGIN_LOCKOUT_LONG_DURATION" envDefault:"30m"`
	LockoutSevereThreshold int           `env:"LOGIN_LOCKOUT_SEVERE_THRESHOLD" envDefault:"20"`
	LockoutSevereDuration  time.Duration `env:"LOGIN_LOCKOUT_SEVERE_DURATION" envDefault:"2h"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	var cfg Config
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg.clamp()
}

// LoadConfigFromEnv reads PB_AUTH_* variables over the defaults.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "PB_AUTH_"}); err != nil {
		return Config{}, fmt.Errorf("auth api config: %w", err)
	}
	return cfg.clamp(), nil
}

func (c Config) clamp() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	if c.LoginIPMax <= 0 {
		c.LoginIPMax = 20
	}
	if c.LoginIPWindow <= 0 {
		c.LoginIPWindow = 5 * time.Minute
	}
	if c.LoginEmailWindow <= 0 {
		c.LoginEmailWindow = 15 * time.Minute
	}
	if c.SessionCookie == "" {
		c.SessionCookie = "pb_session"
	}
	return c
}

func (c Config) lockoutTiers() []lockoutTier {
	tiers := make([]lockoutTier, 0, 3)
	for _, t := range []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	} {
		if t.Threshold > 0 && t.Duration > 0 {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// retention is how long a recorded failure can still matter.
func (c Config) retention() time.Duration {
	r := max(c.LoginIPWindow, c.LoginEmailWindow)
	for _, t := range c.lockoutTiers() {
		r = max(r, c.LoginEmailWindow+t.Duration)
	}
	return r
}

// FailureRetention is the retention a shared FailureLog needs for c.
func (c Config) FailureRetention() time.Duration {
	return c.clamp().retention()
}
