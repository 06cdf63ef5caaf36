package password

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"PB_PASSWORD_MIN_LEN",
		"PB_PASSWORD_MAX_LEN",
		"PB_PASSWORD_REQUIRE_MIXED",
		"PB_PASSWORD_REJECT_VERY_WEAK",
		"PB_ARGON2_MEMORY_KIB",
		"PB_ARGON2_ITERATIONS",
		"PB_ARGON2_PARALLELISM",
		"PB_ARGON2_SALT_LEN",
		"PB_ARGON2_KEY_LEN",
	} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy {
		t.Fatalf("policy mismatch: got %+v want %+v", cfg.Policy, def.Policy)
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("PB_PASSWORD_MIN_LEN", "10")
	t.Setenv("PB_PASSWORD_MAX_LEN", "200")
	t.Setenv("PB_PASSWORD_REQUIRE_MIXED", "false")
	t.Setenv("PB_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("PB_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("PB_ARGON2_ITERATIONS", "4")
	t.Setenv("PB_ARGON2_PARALLELISM", "2")
	t.Setenv("PB_ARGON2_SALT_LEN", "24")
	t.Setenv("PB_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || cfg.Policy.RequireMixed || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("PB_PASSWORD_MIN_LEN", "20")
	t.Setenv("PB_PASSWORD_MAX_LEN", "10")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_OutOfRange(t *testing.T) {
	t.Setenv("PB_ARGON2_ITERATIONS", "99")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
