// Package main provides a CI-friendly smoke test for the portal's auth status stream.
//
// It validates:
//   - optional sign-in through the JSON auth API
//   - handshake + subprotocol selection on /ws/auth
//   - status frames are well formed
//   - the stream settles on the expected status (authenticated with credentials, else anonymous)
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"

	authv1 "projectbank/shared/contracts/auth/v1"
)

const (
	defaultSubprotocol = "projectbank.auth.v1"
	maxReadBytes       = 1 << 20 // 1MiB
)

func main() {
	var (
		baseURL  = flag.String("base", "http://127.0.0.1:8080", "Server base URL")
		origin   = flag.String("origin", "", "Origin header to send (browser-like WS handshake)")
		cookie   = flag.String("cookie", "pb_session", "Session cookie name")
		email    = flag.String("email", "", "Sign in with this email before connecting")
		password = flag.String("password", "", "Password for -email")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -base: %v", err)
	}
	if err := validateOrigin(*origin); err != nil {
		fatalf("invalid -origin: %v", err)
	}

	root := context.Background()

	want := authv1.StatusAnonymous
	var token string
	if *email != "" {
		token = mustLogin(root, base, *email, *password, *timeout)
		want = authv1.StatusAuthenticated
		if *verbose {
			fmt.Printf("signed in: email=%s\n", *email)
		}
	}

	conn := mustConnect(root, wsURL(base), *origin, *cookie, token, *timeout)
	defer closeWS(conn)

	frames := 0
	for {
		f := mustReadFrame(root, conn, *timeout)
		frames++
		if *verbose {
			fmt.Printf("frame: status=%s ts=%s\n", f.Status, f.TS.Format(time.RFC3339Nano))
		}
		if f.Status == authv1.StatusUnknown || f.Status == authv1.StatusChecking {
			continue
		}
		if f.Status != want {
			fatalf("settled status=%q want %q", f.Status, want)
		}
		if want == authv1.StatusAuthenticated && (f.User == nil || f.User.ID == "") {
			fatalf("authenticated frame without user")
		}
		break
	}

	fmt.Printf("OK: status=%s frames=%d\n", want, frames)
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func validateOrigin(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin must be http/https, got: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("origin missing host")
	}
	return nil
}

func wsURL(base *url.URL) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/auth"
	return u.String()
}

func mustLogin(parent context.Context, base *url.URL, email, password string, stepTimeout time.Duration) string {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	body, err := json.Marshal(authv1.LoginRequest{Email: email, Password: password})
	if err != nil {
		fatalf("marshal login: %v", err)
	}
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + authv1.PathLogin

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		fatalf("login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fatalf("login: %v", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		var e authv1.ErrorResponse
		_ = json.NewDecoder(res.Body).Decode(&e)
		fatalf("login: status=%d code=%s message=%q", res.StatusCode, e.Error.Code, e.Error.Message)
	}

	var out authv1.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		fatalf("decode login response: %v", err)
	}
	if out.Session.Token == "" {
		fatalf("login response missing token")
	}
	return out.Session.Token
}

func mustConnect(parent context.Context, wsURL, origin, cookie, token string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if strings.TrimSpace(origin) != "" {
		h.Set("Origin", origin)
	}
	if token != "" {
		h.Set("Cookie", (&http.Cookie{Name: cookie, Value: token}).String())
	}

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{defaultSubprotocol},
		HTTPHeader:   h,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		fatalf("connect: %v", err)
	}

	if got := conn.Subprotocol(); got != defaultSubprotocol {
		closeWS(conn)
		fatalf("subprotocol mismatch: got=%q want=%q", got, defaultSubprotocol)
	}

	conn.SetReadLimit(maxReadBytes)
	return conn
}

func mustReadFrame(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) authv1.StatusFrame {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	typ, b, err := conn.Read(ctx)
	if err != nil {
		fatalf("read: %v (close_status=%v)", err, websocket.CloseStatus(err))
	}
	if typ != websocket.MessageText {
		fatalf("unexpected message type %v", typ)
	}

	var f authv1.StatusFrame
	if err := json.Unmarshal(b, &f); err != nil {
		fatalf("unmarshal frame: %v (%s)", err, b)
	}
	if err := f.Validate(); err != nil {
		fatalf("invalid frame: %v (%s)", err, b)
	}
	return f
}

func closeWS(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
