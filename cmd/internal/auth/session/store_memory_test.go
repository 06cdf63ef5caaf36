package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStore_CreatePrunesExpiredRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	row := func(id, user string, created time.Time, ttl time.Duration) Row {
		return Row{ID: id, UserID: user, CreatedAt: created, ExpiresAt: created.Add(ttl)}
	}

	if err := s.Create(ctx, row("short", "user-1", start, time.Minute)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, row("revoked", "user-2", start, 90*time.Second)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, row("long", "user-1", start, time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Revoke(ctx, start, "revoked"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	// Within the prune interval nothing is dropped, even if expired.
	if err := s.Create(ctx, row("early", "user-3", start.Add(30*time.Second), time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n := s.Len(); n != 4 {
		t.Fatalf("len before prune: got %d want 4", n)
	}

	later := start.Add(2 * time.Minute)
	if err := s.Create(ctx, row("late", "user-1", later, time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n := s.Len(); n != 3 {
		t.Fatalf("len after prune: got %d want 3", n)
	}
	for _, id := range []string{"short", "revoked"} {
		if _, err := s.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("%s: expected ErrSessionNotFound, got %v", id, err)
		}
	}
	for _, id := range []string{"long", "early", "late"} {
		if _, err := s.Get(ctx, id); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
	}

	s.mu.Lock()
	_, user2 := s.byUser["user-2"]
	owned := len(s.byUser["user-1"])
	s.mu.Unlock()
	if user2 || owned != 2 {
		t.Fatalf("user index not pruned: user-2 present=%v user-1 rows=%d", user2, owned)
	}
}
