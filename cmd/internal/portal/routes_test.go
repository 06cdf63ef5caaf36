package portal

import (
	"testing"

	"projectbank/cmd/internal/guard"
)

func TestRouteTableRules(t *testing.T) {
	t.Parallel()

	want := map[string]guard.Requirement{
		"/{$}":          guard.Public,
		"/browse":       guard.Public,
		"/project/{id}": guard.Public,
		"/upload":       guard.RequiresAuth,
		"/profile":      guard.RequiresAuth,
		"/edit-profile": guard.RequiresAuth,
		"/login":        guard.RequiresAnonymous,
		"/register":     guard.RequiresAnonymous,
		"/about":        guard.Public,
		"/news":         guard.Public,
	}
	for pattern, req := range want {
		p, ok := PageFor(pattern)
		if !ok {
			t.Fatalf("no page for %s", pattern)
		}
		if p.Rule.Requirement != req {
			t.Fatalf("%s: requirement got %v want %v", pattern, p.Rule.Requirement, req)
		}
	}

	if _, ok := PageFor("/admin"); ok {
		t.Fatalf("unexpected page for /admin")
	}
}

func TestRouteTableIsWellFormed(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool, len(Pages))
	for _, p := range Pages {
		if seen[p.Pattern] {
			t.Fatalf("duplicate pattern %s", p.Pattern)
		}
		seen[p.Pattern] = true

		if p.Title == "" {
			t.Fatalf("%s: empty title", p.Pattern)
		}
		if p.Rule.RedirectTo != "" {
			t.Fatalf("%s: unexpected redirect override %q", p.Pattern, p.Rule.RedirectTo)
		}
		if p.Name == "placeholder" && p.Description == "" {
			t.Fatalf("%s: placeholder without description", p.Pattern)
		}
	}
}
