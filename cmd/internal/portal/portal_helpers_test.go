package portal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"projectbank/cmd/identity"
	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
	"projectbank/cmd/internal/metrics"
	"projectbank/cmd/security/password"
	"projectbank/cmd/security/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newLocalBackend(t *testing.T) *backend.Service {
	t.Helper()

	tm, err := token.NewManager(token.Config{Key: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("token.NewManager: %v", err)
	}
	sessions := session.NewService(session.DefaultConfig(), session.NewMemoryStore(), tm)
	svc, err := backend.NewService(identity.NewMemoryStore(fastHasher()), sessions,
		backend.WithHasher(fastHasher()), backend.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("backend.NewService: %v", err)
	}
	return svc
}

type testPortal struct {
	srv     *httptest.Server
	portal  *Server
	metrics *metrics.Metrics
}

func newTestPortal(t *testing.T, auth backend.Authenticator, cfg Config) *testPortal {
	t.Helper()

	m := metrics.New()
	p, err := NewServer(cfg, auth, WithLogger(discardLogger()), WithMetrics(m))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	mux := http.NewServeMux()
	p.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &testPortal{srv: srv, portal: p, metrics: m}
}

// newBrowser returns a client with a cookie jar that does not follow redirects.
func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type response struct {
	status   int
	location string
	body     string
	cookies  []*http.Cookie
}

func get(t *testing.T, c *http.Client, u string) response {
	t.Helper()

	res, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	return readResponse(t, res)
}

func postForm(t *testing.T, c *http.Client, u string, form url.Values) response {
	t.Helper()

	res, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	return readResponse(t, res)
}

func readResponse(t *testing.T, res *http.Response) response {
	t.Helper()
	defer func() { _ = res.Body.Close() }()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return response{
		status:   res.StatusCode,
		location: res.Header.Get("Location"),
		body:     string(b),
		cookies:  res.Cookies(),
	}
}

func mustContain(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Fatalf("body does not contain %q:\n%s", want, body)
	}
}

func validRegisterForm() url.Values {
	return url.Values{
		"first_name":       {"Asha"},
		"last_name":        {"Meena"},
		"email":            {"asha@rcew.ac.in"},
		"roll_number":      {"21erwcs001"},
		"department":       {"cse"},
		"semester":         {"5"},
		"password":         {"Rcew2023cs"},
		"confirm_password": {"Rcew2023cs"},
		"agree_to_terms":   {"on"},
	}
}

// blockingAuth resumes only after release is closed.
type blockingAuth struct {
	backend.Authenticator
	release chan struct{}

	mu      sync.Mutex
	resumes int
}

func newBlockingAuth(inner backend.Authenticator) *blockingAuth {
	return &blockingAuth{Authenticator: inner, release: make(chan struct{})}
}

func (b *blockingAuth) Resume(ctx context.Context, tok string) (*authstate.Outcome, error) {
	b.mu.Lock()
	b.resumes++
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Authenticator.Resume(ctx, tok)
}

func contains(body, s string) bool { return strings.Contains(body, s) }
