package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// RequireMixed demands an uppercase letter, a lowercase letter and a digit.
	RequireMixed bool
	// RejectVeryWeak enables an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the portal baseline: 8+ characters with mixed case and
// a digit, hashed with interactive-login Argon2id costs.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RequireMixed:   true,
			RejectVeryWeak: false,
		},
	}
}

// envOverrides mirrors the env surface. Pointer fields stay nil when unset so
// only explicitly configured values override DefaultConfig.
type envOverrides struct {
	MinLen         *int    `env:"PB_PASSWORD_MIN_LEN"`
	MaxLen         *int    `env:"PB_PASSWORD_MAX_LEN"`
	RequireMixed   *bool   `env:"PB_PASSWORD_REQUIRE_MIXED"`
	RejectVeryWeak *bool   `env:"PB_PASSWORD_REJECT_VERY_WEAK"`
	MemoryKiB      *uint32 `env:"PB_ARGON2_MEMORY_KIB"`
	Iterations     *uint32 `env:"PB_ARGON2_ITERATIONS"`
	Parallelism    *uint32 `env:"PB_ARGON2_PARALLELISM"`
	SaltLen        *uint32 `env:"PB_ARGON2_SALT_LEN"`
	KeyLen         *uint32 `env:"PB_ARGON2_KEY_LEN"`
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
// - PB_PASSWORD_MIN_LEN, PB_PASSWORD_MAX_LEN
// - PB_PASSWORD_REQUIRE_MIXED, PB_PASSWORD_REJECT_VERY_WEAK (true/false)
// - PB_ARGON2_MEMORY_KIB, PB_ARGON2_ITERATIONS, PB_ARGON2_PARALLELISM
// - PB_ARGON2_SALT_LEN, PB_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return Config{}, fmt.Errorf("password env: %w", err)
	}
	return o.apply(DefaultConfig())
}

func (o envOverrides) apply(cfg Config) (Config, error) {
	if o.MinLen != nil {
		if err := inRange("PB_PASSWORD_MIN_LEN", *o.MinLen, 1, 1024); err != nil {
			return Config{}, err
		}
		cfg.Policy.MinLength = *o.MinLen
	}
	if o.MaxLen != nil {
		if err := inRange("PB_PASSWORD_MAX_LEN", *o.MaxLen, 1, 4096); err != nil {
			return Config{}, err
		}
		cfg.Policy.MaxLength = *o.MaxLen
	}
	if o.RequireMixed != nil {
		cfg.Policy.RequireMixed = *o.RequireMixed
	}
	if o.RejectVeryWeak != nil {
		cfg.Policy.RejectVeryWeak = *o.RejectVeryWeak
	}

	if o.MemoryKiB != nil {
		if err := inRangeU32("PB_ARGON2_MEMORY_KIB", *o.MemoryKiB, 8*1024, 1024*1024); err != nil {
			return Config{}, err
		}
		cfg.Params.MemoryKiB = *o.MemoryKiB
	}
	if o.Iterations != nil {
		if err := inRangeU32("PB_ARGON2_ITERATIONS", *o.Iterations, 1, 20); err != nil {
			return Config{}, err
		}
		cfg.Params.Iterations = *o.Iterations
	}
	if o.Parallelism != nil {
		if err := inRangeU32("PB_ARGON2_PARALLELISM", *o.Parallelism, 1, 64); err != nil {
			return Config{}, err
		}
		cfg.Params.Parallelism = uint8(*o.Parallelism) // #nosec G115 -- bounded to [1..64] above.
	}
	if o.SaltLen != nil {
		if err := inRangeU32("PB_ARGON2_SALT_LEN", *o.SaltLen, 8, 64); err != nil {
			return Config{}, err
		}
		cfg.Params.SaltLength = *o.SaltLen
	}
	if o.KeyLen != nil {
		if err := inRangeU32("PB_ARGON2_KEY_LEN", *o.KeyLen, 16, 64); err != nil {
			return Config{}, err
		}
		cfg.Params.KeyLength = *o.KeyLen
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func inRange(key string, v, minVal, maxVal int) error {
	if v < minVal || v > maxVal {
		return fmt.Errorf("%s: out of range [%d..%d]", key, minVal, maxVal)
	}
	return nil
}

func inRangeU32(key string, v, minVal, maxVal uint32) error {
	if v < minVal || v > maxVal {
		return fmt.Errorf("%s: out of range [%d..%d]", key, minVal, maxVal)
	}
	return nil
}
