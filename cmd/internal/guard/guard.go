// Package guard decides what a navigation to a portal route should produce.
//
// Decide is a pure function of the visitor's authstate.Session, the route's
// Rule and the requested location: it renders, shows the loading placeholder
// or redirects. It never performs I/O and never changes the session.
package guard

import (
	"net/http"
	"net/url"
)

const (
	// DefaultSignIn is where RequiresAuth routes send anonymous visitors.
	DefaultSignIn = "/login"
	// DefaultLanding is where RequiresAnonymous routes send signed-in visitors.
	DefaultLanding = "/browse"
	// ReturnToParam carries the originally requested location to the sign-in page.
	ReturnToParam = "next"
)

// Requirement is the declared access policy of a route.
type Requirement uint8

const (
	Public Requirement = iota
	RequiresAuth
	RequiresAnonymous
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case RequiresAuth:
		return "requires_auth"
	case RequiresAnonymous:
		return "requires_anonymous"
	default:
		return "invalid"
	}
}

// Rule wraps a route. RedirectTo overrides DefaultSignIn for RequiresAuth.
type Rule struct {
	Requirement Requirement
	RedirectTo  string
}

// Action is the kind of Decision.
type Action uint8

const (
	Render Action = iota
	Placeholder
	RedirectAction
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Placeholder:
		return "placeholder"
	case RedirectAction:
		return "redirect"
	default:
		return "invalid"
	}
}

// Redirect replaces the current history entry with Target. ReturnTo, when set,
// is the location the sign-in flow should go back to.
type Redirect struct {
	Target   string
	ReturnTo string
	Replace  bool
}

// Location is Target with ReturnTo attached as the "next" query parameter.
func (r Redirect) Location() string {
	if r.ReturnTo == "" {
		return r.Target
	}
	u, err := url.Parse(r.Target)
	if err != nil {
		return r.Target
	}
	q := u.Query()
	q.Set(ReturnToParam, r.ReturnTo)
	u.RawQuery = q.Encode()
	return u.String()
}

// StatusCode is the HTTP status that makes the browser replace the guarded
// entry: 302 for GET/HEAD and 303 for anything else so the follow-up is a GET.
func (r Redirect) StatusCode(method string) int {
	if method == http.MethodGet || method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

// Decision is the outcome of Decide. Redirect is set only for RedirectAction.
type Decision struct {
	Action   Action
	Redirect *Redirect
}
