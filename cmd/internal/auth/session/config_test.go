package session

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"PB_AUTH_ISSUER", "PB_SESSION_TTL", "PB_SESSION_REMEMBER_TTL", "PB_SESSION_CLOCK_SKEW"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("defaults mismatch: got %+v want %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("PB_SESSION_TTL", "soon")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_NegativeTTL(t *testing.T) {
	t.Setenv("PB_SESSION_TTL", "-5m")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_RememberShorterThanTTL(t *testing.T) {
	t.Setenv("PB_SESSION_TTL", "48h")
	t.Setenv("PB_SESSION_REMEMBER_TTL", "24h")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("PB_AUTH_ISSUER", "pb-test")
	t.Setenv("PB_SESSION_TTL", "2h")
	t.Setenv("PB_SESSION_REMEMBER_TTL", "168h")
	t.Setenv("PB_SESSION_CLOCK_SKEW", "10s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Issuer != "pb-test" || cfg.TTL != 2*time.Hour || cfg.RememberTTL != 168*time.Hour || cfg.ClockSkew != 10*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
