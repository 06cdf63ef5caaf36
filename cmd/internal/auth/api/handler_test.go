package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"projectbank/cmd/identity"
	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
	"projectbank/cmd/security/password"
	"projectbank/cmd/security/token"
	authv1 "projectbank/shared/contracts/auth/v1"
)

type rateObserver struct{ n atomic.Int32 }

func (o *rateObserver) ObserveRateLimited(string) { o.n.Add(1) }

func fastHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func newTestAPI(t *testing.T, cfg Config, opts ...HandlerOption) *httptest.Server {
	t.Helper()

	tm, err := token.NewManager(token.Config{Key: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("token.NewManager: %v", err)
	}
	sessions := session.NewService(session.DefaultConfig(), session.NewMemoryStore(), tm)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := backend.NewService(identity.NewMemoryStore(fastHasher()), sessions, backend.WithHasher(fastHasher()), backend.WithLogger(log))
	if err != nil {
		t.Fatalf("backend.NewService: %v", err)
	}

	h, err := NewHandler(log, svc, cfg, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, payload any, headers map[string]string) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	out, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, out
}

func sampleRegister() authv1.RegisterRequest {
	return authv1.RegisterRequest{
		FirstName:  "Asha",
		LastName:   "Meena",
		Email:      "asha@rcew.ac.in",
		RollNumber: "21ERWCS001",
		Department: "Computer Science",
		Semester:   5,
		Password:   "Rcew2023cs",
	}
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()

	var env authv1.ErrorResponse
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, body)
	}
	return env.Error.Code
}

func TestAuthAPI_RegisterLoginSessionLogout(t *testing.T) {
	t.Parallel()

	ts := newTestAPI(t, DefaultConfig())
	client := ts.Client()

	status, body := doJSON(t, client, http.MethodPost, ts.URL+authv1.PathRegister, sampleRegister(), nil)
	if status != http.StatusCreated {
		t.Fatalf("register: status %d body %s", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, ts.URL+authv1.PathRegister, sampleRegister(), nil)
	if status != http.StatusConflict || errorCode(t, body) != backend.CodeEmailTaken {
		t.Fatalf("duplicate register: status %d body %s", status, body)
	}

	status, body = doJSON(t, client, http.MethodPost, ts.URL+authv1.PathLogin, authv1.LoginRequest{Email: "asha@rcew.ac.in", Password: "Rcew2023cs"}, nil)
	if status != http.StatusOK {
		t.Fatalf("login: status %d body %s", status, body)
	}
	var login authv1.LoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Session.Token == "" || login.User.DisplayName != "Asha Meena" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	bearer := map[string]string{"Authorization": "Bearer " + login.Session.Token}
	status, body = doJSON(t, client, http.MethodGet, ts.URL+authv1.PathSession, nil, bearer)
	if status != http.StatusOK {
		t.Fatalf("session: status %d body %s", status, body)
	}

	cookie := map[string]string{"Cookie": "pb_session=" + login.Session.Token}
	status, _ = doJSON(t, client, http.MethodGet, ts.URL+authv1.PathSession, nil, cookie)
	if status != http.StatusOK {
		t.Fatalf("session via cookie: status %d", status)
	}

	status, _ = doJSON(t, client, http.MethodPost, ts.URL+authv1.PathLogout, nil, bearer)
	if status != http.StatusNoContent {
		t.Fatalf("logout: status %d", status)
	}

	status, _ = doJSON(t, client, http.MethodGet, ts.URL+authv1.PathSession, nil, bearer)
	if status != http.StatusUnauthorized {
		t.Fatalf("session after logout: status %d", status)
	}
}

func TestAuthAPI_LoginFailure_NoEnumeration(t *testing.T) {
	t.Parallel()

	ts := newTestAPI(t, DefaultConfig())
	client := ts.Client()
	if status, body := doJSON(t, client, http.MethodPost, ts.URL+authv1.PathRegister, sampleRegister(), nil); status != http.StatusCreated {
		t.Fatalf("register: status %d body %s", status, body)
	}

	statusA, bodyA := doJSON(t, client, http.MethodPost, ts.URL+authv1.PathLogin, authv1.LoginRequest{Email: "nobody@rcew.ac.in", Password: "Rcew2023cs"}, nil)
	statusB, bodyB := doJSON(t, client, http.MethodPost, ts.URL+authv1.PathLogin, authv1.LoginRequest{Email: "asha@rcew.ac.in", Password: "Wrong-pass1"}, nil)
	if statusA != http.StatusUnauthorized || statusB != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", statusA, statusB)
	}
	if !bytes.Equal(bodyA, bodyB) {
		t.Fatalf("error bodies differ:\n%s\n%s", bodyA, bodyB)
	}
}

func TestAuthAPI_LoginRateLimited(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.LoginIPMax = 2
	obs := &rateObserver{}
	ts := newTestAPI(t, cfg, WithObserver(obs))
	client := ts.Client()

	req := authv1.LoginRequest{Email: "asha@rcew.ac.in", Password: "Wrong-pass1"}
	for range 2 {
		if status, _ := doJSON(t, client, http.MethodPost, ts.URL+authv1.PathLogin, req, nil); status != http.StatusUnauthorized {
			t.Fatalf("expected 401 before limit, got %d", status)
		}
	}

	res, err := client.Post(ts.URL+authv1.PathLogin, "application/json", bytes.NewReader([]byte(`{"email":"asha@rcew.ac.in","password":"x"}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", res.StatusCode)
	}
	if res.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if n := obs.n.Load(); n != 1 {
		t.Fatalf("expected one rate-limit observation, got %d", n)
	}
}

func TestAuthAPI_BadRequests(t *testing.T) {
	t.Parallel()

	ts := newTestAPI(t, DefaultConfig())
	client := ts.Client()

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"login missing password", http.MethodPost, authv1.PathLogin, authv1.LoginRequest{Email: "a@b.c"}, http.StatusBadRequest},
		{"login unknown field", http.MethodPost, authv1.PathLogin, map[string]any{"email": "a@b.c", "password": "x", "platform": "ios"}, http.StatusBadRequest},
		{"login wrong method", http.MethodGet, authv1.PathLogin, nil, http.StatusMethodNotAllowed},
		{"register invalid roll", http.MethodPost, authv1.PathRegister, func() authv1.RegisterRequest { r := sampleRegister(); r.RollNumber = "CS01"; return r }(), http.StatusBadRequest},
		{"session without token", http.MethodGet, authv1.PathSession, nil, http.StatusUnauthorized},
		{"logout without token", http.MethodPost, authv1.PathLogout, nil, http.StatusNoContent},
	}
	for _, tc := range cases {
		status, body := doJSON(t, client, tc.method, ts.URL+tc.path, tc.body, nil)
		if status != tc.want {
			t.Fatalf("%s: status %d, want %d (%s)", tc.name, status, tc.want, body)
		}
	}
}

// The remote backend client and this API agree on the wire contract.
func TestAuthAPI_BackendClientRoundTrip(t *testing.T) {
	t.Parallel()

	ts := newTestAPI(t, DefaultConfig())
	c, err := backend.NewClient(ts.URL, backend.WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	reg := sampleRegister()
	out, err := c.CreateAccount(ctx, authstate.Registration{
		FirstName: reg.FirstName, LastName: reg.LastName, Email: reg.Email,
		RollNumber: reg.RollNumber, Department: reg.Department, Semester: reg.Semester, Password: reg.Password,
	})
	if err != nil || !out.Success {
		t.Fatalf("CreateAccount: %+v, %v", out, err)
	}

	out, err = c.CreateAccount(ctx, authstate.Registration{
		FirstName: "B", LastName: "C", Email: "other@rcew.ac.in",
		RollNumber: reg.RollNumber, Department: reg.Department, Semester: reg.Semester, Password: reg.Password,
	})
	if err != nil || out.Success || out.Message != backend.MsgRollNumberTaken {
		t.Fatalf("duplicate roll: %+v, %v", out, err)
	}

	out, err = c.Authenticate(ctx, authstate.Credentials{Email: reg.Email, Password: "nope"}, session.DeviceContext{})
	if err != nil || out.Success || out.Message != backend.MsgInvalidCredentials {
		t.Fatalf("bad login: %+v, %v", out, err)
	}

	out, err = c.Authenticate(ctx, authstate.Credentials{Email: reg.Email, Password: reg.Password}, session.DeviceContext{UserAgent: "portal/1"})
	if err != nil || !out.Success || out.Token == "" {
		t.Fatalf("login: %+v, %v", out, err)
	}

	resumed, err := c.Resume(ctx, out.Token)
	if err != nil || resumed == nil || resumed.Identity.Email != reg.Email {
		t.Fatalf("resume: %+v, %v", resumed, err)
	}

	if err := c.Logout(ctx, out.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	resumed, err = c.Resume(ctx, out.Token)
	if err != nil || resumed != nil {
		t.Fatalf("resume after logout: %+v, %v", resumed, err)
	}

	first, err := c.Authenticate(ctx, authstate.Credentials{Email: reg.Email, Password: reg.Password}, session.DeviceContext{})
	if err != nil || !first.Success {
		t.Fatalf("login: %+v, %v", first, err)
	}
	second, err := c.Authenticate(ctx, authstate.Credentials{Email: reg.Email, Password: reg.Password}, session.DeviceContext{})
	if err != nil || !second.Success {
		t.Fatalf("login: %+v, %v", second, err)
	}
	if err := c.LogoutAll(ctx, first.Token); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	resumed, err = c.Resume(ctx, second.Token)
	if err != nil || resumed != nil {
		t.Fatalf("resume after logout-all: %+v, %v", resumed, err)
	}
}
