package portal

import (
	"context"
	"testing"
	"time"

	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
)

func TestRegistrySweepDropsIdleVisitors(t *testing.T) {
	t.Parallel()

	r := NewRegistry(discardLogger(), newLocalBackend(t), time.Minute, nil, nil)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Create("", session.DeviceContext{})
	busy := r.Create("", session.DeviceContext{})

	now = now.Add(45 * time.Second)
	if _, ok := r.Get(busy.ID, session.DeviceContext{UserAgent: "test"}); !ok {
		t.Fatalf("busy visitor missing")
	}

	now = now.Add(30 * time.Second)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("swept: got %d want 1", n)
	}
	if _, ok := r.Get(idle.ID, session.DeviceContext{}); ok {
		t.Fatalf("idle visitor survived the sweep")
	}
	if _, ok := r.Get(busy.ID, session.DeviceContext{}); !ok {
		t.Fatalf("busy visitor was swept")
	}
	if r.Len() != 1 {
		t.Fatalf("len: got %d want 1", r.Len())
	}
}

func TestRegistryCapEvictsLeastRecentlySeen(t *testing.T) {
	t.Parallel()

	r := NewRegistry(discardLogger(), newLocalBackend(t), time.Hour, nil, nil)
	r.SetMaxVisitors(2)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	first := r.Create("", session.DeviceContext{})
	now = now.Add(time.Second)
	second := r.Create("", session.DeviceContext{})
	now = now.Add(time.Second)
	if _, ok := r.Get(first.ID, session.DeviceContext{}); !ok {
		t.Fatalf("first visitor missing")
	}

	now = now.Add(time.Second)
	third := r.Create("", session.DeviceContext{})

	if r.Len() != 2 {
		t.Fatalf("len: got %d want 2", r.Len())
	}
	if _, ok := r.Get(second.ID, session.DeviceContext{}); ok {
		t.Fatalf("least recently seen visitor survived")
	}
	for _, v := range []*Visitor{first, third} {
		if _, ok := r.Get(v.ID, session.DeviceContext{}); !ok {
			t.Fatalf("visitor %s evicted", v.ID)
		}
	}
}

func TestRegistryTransientIsAnonymousAndUnregistered(t *testing.T) {
	t.Parallel()

	r := NewRegistry(discardLogger(), newLocalBackend(t), time.Hour, nil, nil)
	v := r.Transient(session.DeviceContext{})

	select {
	case <-v.Provider.Settled():
	default:
		t.Fatalf("transient visitor not settled")
	}
	if got := v.Provider.Session().Status(); got != authstate.StatusAnonymous {
		t.Fatalf("status: got %v want anonymous", got)
	}
	if v.ID != "" || r.Len() != 0 {
		t.Fatalf("transient visitor registered: id=%q len=%d", v.ID, r.Len())
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, newLocalBackend(t), time.Minute, nil, nil)
	if _, ok := r.Get("", session.DeviceContext{}); ok {
		t.Fatalf("empty id resolved")
	}
	if _, ok := r.Get("nope", session.DeviceContext{}); ok {
		t.Fatalf("unknown id resolved")
	}
}

func TestVisitorFlashIsOneShot(t *testing.T) {
	t.Parallel()

	v := &Visitor{}
	v.setFlash("hello")
	if got := v.takeFlash(); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := v.takeFlash(); got != "" {
		t.Fatalf("second take: got %q", got)
	}
}

func TestVisitorBackendTracksToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newLocalBackend(t)
	if _, err := svc.CreateAccount(ctx, authstate.Registration{
		FirstName: "Asha", LastName: "Meena", Email: "asha@rcew.ac.in",
		RollNumber: "21ERWCS001", Department: "Computer Science Engineering",
		Semester: 5, Password: "Rcew2023cs",
	}); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	b := newVisitorBackend(svc, "stale-token", session.DeviceContext{})
	out, err := b.RestoreSession(ctx)
	if err != nil || out != nil {
		t.Fatalf("restore with stale token: got %v, %v", out, err)
	}
	if b.Token() != "" {
		t.Fatalf("stale token not cleared")
	}

	login, err := b.Authenticate(ctx, authstate.Credentials{Email: "asha@rcew.ac.in", Password: "Rcew2023cs"})
	if err != nil || !login.Success {
		t.Fatalf("Authenticate: %+v, %v", login, err)
	}
	if b.Token() != login.Token {
		t.Fatalf("token not stored after login")
	}

	restored, err := b.RestoreSession(ctx)
	if err != nil || restored == nil || !restored.Success {
		t.Fatalf("restore with live token: %+v, %v", restored, err)
	}

	b.swapToken("other", "")
	if b.Token() != login.Token {
		t.Fatalf("swapToken replaced a newer token")
	}
	if got := b.takeToken(); got != login.Token || b.Token() != "" {
		t.Fatalf("takeToken: got %q, left %q", got, b.Token())
	}
}
