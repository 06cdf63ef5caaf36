package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort   = errors.New("password too short")
	ErrPasswordTooLong    = errors.New("password too long")
	ErrPasswordComplexity = errors.New("password needs uppercase, lowercase and a number")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidHash        = errors.New("invalid password hash")
)
