package guard

import "projectbank/cmd/internal/authstate"

// Decide applies rule to s for a request of location (path plus query).
//
//	loading                           -> Placeholder
//	RequiresAuth, no identity         -> redirect to sign-in, ReturnTo = location
//	RequiresAnonymous, identity       -> redirect to DefaultLanding
//	everything else                   -> Render
func Decide(s authstate.Session, rule Rule, location string) Decision {
	if s.Loading() {
		return Decision{Action: Placeholder}
	}

	_, signedIn := s.Identity()

	switch {
	case rule.Requirement == RequiresAuth && !signedIn:
		target := rule.RedirectTo
		if target == "" {
			target = DefaultSignIn
		}
		return Decision{Action: RedirectAction, Redirect: &Redirect{
			Target:   target,
			ReturnTo: location,
			Replace:  true,
		}}
	case rule.Requirement == RequiresAnonymous && signedIn:
		return Decision{Action: RedirectAction, Redirect: &Redirect{
			Target:  DefaultLanding,
			Replace: true,
		}}
	default:
		return Decision{Action: Render}
	}
}
