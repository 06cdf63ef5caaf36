package authstate

import (
	"context"
	"time"
)

// Credentials is a sign-in attempt.
type Credentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// Registration is a new student account request.
type Registration struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	RollNumber string `json:"roll_number"`
	Department string `json:"department"`
	Semester   int    `json:"semester"`
	Password   string `json:"password"`
}

// Outcome is what the backend reports for a restore, login or registration.
// Token is an opaque session credential for the transport layer to keep.
type Outcome struct {
	Success   bool      `json:"success"`
	Identity  *Identity `json:"identity,omitempty"`
	Message   string    `json:"message,omitempty"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Backend is the authentication collaborator behind a Provider.
type Backend interface {
	// RestoreSession reports a still-valid prior session, or nil if there is none.
	RestoreSession(ctx context.Context) (*Outcome, error)
	Authenticate(ctx context.Context, c Credentials) (Outcome, error)
	CreateAccount(ctx context.Context, r Registration) (Outcome, error)
}
