package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"projectbank/cmd/security/token"
	authv1 "projectbank/shared/contracts/auth/v1"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
		{name: "port only", in: ":8080", want: "http://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://projects.rcew.ac.in", want: "wss://projects.rcew.ac.in"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()

	t.Setenv(token.KeyEnv, strings.Repeat("t", token.MinKeyBytes))
	t.Setenv("PB_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("PB_ARGON2_ITERATIONS", "1")

	cfg := Config{ServeAuthAPI: true}.clamp()
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestApp_InMemoryWiring(t *testing.T) {
	srv := newTestApp(t)
	c := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/upload", "", http.StatusFound},
		{http.MethodGet, "/missing", "", http.StatusNotFound},
		{http.MethodGet, authv1.PathSession, "", http.StatusUnauthorized},
		{http.MethodPost, authv1.PathRegister, `{"first_name":"Asha","last_name":"Meena","email":"asha@rcew.ac.in","roll_number":"21ERWCS001","department":"Computer Science Engineering","semester":5,"password":"Rcew2023cs"}`, http.StatusCreated},
		{http.MethodPost, authv1.PathLogin, `{"email":"asha@rcew.ac.in","password":"Rcew2023cs"}`, http.StatusOK},
	}

	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if tc.body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		res, err := c.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		_ = res.Body.Close()
		if res.StatusCode != tc.want {
			t.Fatalf("%s %s: status %d want %d", tc.method, tc.path, res.StatusCode, tc.want)
		}
		if got := res.Header.Get("X-Content-Type-Options"); got != "nosniff" {
			t.Fatalf("%s %s: missing security headers", tc.method, tc.path)
		}
	}

	res, err := c.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	b, _ := io.ReadAll(res.Body)
	for _, want := range []string{"projectbank_http_requests_total", "projectbank_guard_decisions_total", "projectbank_auth_actions_total"} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("metrics missing %s", want)
		}
	}
}

func TestApp_CORSGuardsAuthAPI(t *testing.T) {
	srv := newTestApp(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+authv1.PathSession, nil)
	req.Header.Set("Origin", "https://evil.example")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusForbidden)
	}
}
