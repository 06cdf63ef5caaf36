// Package authstate owns one visitor's authentication state.
//
// A Provider holds an immutable Session value (unknown, checking,
// authenticated or anonymous) and is the only thing allowed to change it:
// through the once-only Restore step and the Login, Register and Logout
// actions. Backend failures never escape a Provider; they come back as a
// *Failure carrying the reason to show the visitor.
package authstate
