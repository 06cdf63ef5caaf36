package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"projectbank/cmd/internal/authstate"
)

func TestObservers(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveTransition(authstate.StatusUnknown, authstate.StatusChecking)
	m.ObserveTransition(authstate.StatusChecking, authstate.StatusAnonymous)
	m.ObserveAction("login", false)
	m.ObserveAction("login", true)
	m.ObserveAction("login", true)
	m.ObserveDecision("requires_auth", "redirect")
	m.ObserveRateLimited("login")
	m.ObserveRequest(http.MethodGet, "/browse", 200, 15*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/browse", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("checking", "anonymous")); got != 1 {
		t.Fatalf("transitions=%v", got)
	}
	if got := testutil.ToFloat64(m.AuthActionsTotal.WithLabelValues("login", "ok")); got != 2 {
		t.Fatalf("login ok=%v", got)
	}
	if got := testutil.ToFloat64(m.GuardDecisionsTotal.WithLabelValues("requires_auth", "redirect")); got != 1 {
		t.Fatalf("decisions=%v", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/browse", "4xx")); got != 1 {
		t.Fatalf("4xx=%v", got)
	}
	if got := testutil.CollectAndCount(m.RequestDuration); got != 1 {
		t.Fatalf("duration series=%d", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveAction("login", true)
	m.ObserveTransition(authstate.StatusUnknown, authstate.StatusAnonymous)
	m.ObserveDecision("public", "render")
	m.ObserveRequest("GET", "/", 200, 0)
	m.ObserveRateLimited("login")
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAction("register", true)
	m.VisitorsActive.Set(3)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}

	body, _ := io.ReadAll(rr.Body)
	for _, name := range []string{
		"projectbank_auth_actions_total",
		"projectbank_visitors_active 3",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("missing %q in exposition", name)
		}
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]string{101: "1xx", 204: "2xx", 302: "3xx", 429: "4xx", 503: "5xx"} {
		if got := StatusClass(code); got != want {
			t.Fatalf("StatusClass(%d)=%s want %s", code, got, want)
		}
	}
}
