package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"PB_HTTP_ADDR", "PB_DATABASE_URL", "PB_REDIS_URL", "PB_SESSION_STORE", "PB_LOG_FORMAT"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("addr: got %q", cfg.HTTPAddr)
	}
	if cfg.SessionStore != StoreMemory {
		t.Fatalf("session store: got %q want %q", cfg.SessionStore, StoreMemory)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("log format: got %q", cfg.LogFormat)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second || cfg.MaxHeaderBytes != 1<<20 {
		t.Fatalf("http limits: got %v %d", cfg.ReadHeaderTimeout, cfg.MaxHeaderBytes)
	}
	if !cfg.ServeAuthAPI {
		t.Fatalf("auth api should be served by default")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PB_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("PB_LOG_FORMAT", "Pretty")
	t.Setenv("PB_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PB_SESSION_STORE", "REDIS")
	t.Setenv("PB_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.LogFormat != "pretty" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SessionStore != StoreRedis {
		t.Fatalf("session store: got %q", cfg.SessionStore)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("cors origins: got %v", cfg.CORSAllowedOrigins)
	}
}

func TestConfigClamp_SessionStoreFollowsDatabase(t *testing.T) {
	t.Parallel()

	cfg := Config{DatabaseURL: " postgres://localhost/pb "}.clamp()
	if cfg.SessionStore != StorePostgres {
		t.Fatalf("session store: got %q want %q", cfg.SessionStore, StorePostgres)
	}
	if cfg.DatabaseURL != "postgres://localhost/pb" {
		t.Fatalf("database url not trimmed: %q", cfg.DatabaseURL)
	}

	cfg = Config{DBMaxConns: 4, DBMinConns: 9, DBSchema: ""}.clamp()
	if cfg.DBMinConns != 4 || cfg.DBSchema != "projectbank" {
		t.Fatalf("pool clamp: got min=%d schema=%q", cfg.DBMinConns, cfg.DBSchema)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{SessionStore: StoreMemory}, false},
		{"redis without url", Config{SessionStore: StoreRedis}, true},
		{"redis with url", Config{SessionStore: StoreRedis, RedisURL: "redis://x"}, false},
		{"postgres without db", Config{SessionStore: StorePostgres}, true},
		{"unknown", Config{SessionStore: "etcd"}, true},
	}
	for _, tc := range cases {
		err := tc.cfg.validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: err=%v wantErr=%v", tc.name, err, tc.wantErr)
		}
	}
}

func TestLoadConfig_RejectsBadDuration(t *testing.T) {
	t.Setenv("PB_HTTP_READ_TIMEOUT", "fast")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error")
	}
}
