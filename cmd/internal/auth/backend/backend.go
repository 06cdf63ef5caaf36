package backend

import (
	"context"

	"projectbank/cmd/internal/auth/session"
	"projectbank/cmd/internal/authstate"
)

// Authenticator is implemented by Service and Client.
type Authenticator interface {
	// Resume reports the session named by token, or nil when there is none.
	Resume(ctx context.Context, token string) (*authstate.Outcome, error)
	Authenticate(ctx context.Context, c authstate.Credentials, dev session.DeviceContext) (authstate.Outcome, error)
	CreateAccount(ctx context.Context, r authstate.Registration) (authstate.Outcome, error)
	// Logout revokes the session named by token. Unknown tokens are not an error.
	Logout(ctx context.Context, token string) error
	// LogoutAll revokes every session of the user that owns token. Only an
	// active session can do this; other tokens are not an error.
	LogoutAll(ctx context.Context, token string) error
}

var (
	_ Authenticator = (*Service)(nil)
	_ Authenticator = (*Client)(nil)
)

// Messages shown to students. Codes are the auth API's error codes.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgEmailTaken         = "An account with this email already exists"
	MsgRollNumberTaken    = "An account with this roll number already exists"
	MsgInvalidDetails     = "Please check your details and try again."
	MsgRateLimited        = "Too many attempts. Please try again later."

	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailTaken         = "email_taken"
	CodeRollNumberTaken    = "roll_number_taken"
	CodeInvalidRequest     = "invalid_request"
	CodeRateLimited        = "rate_limited"
)

// MessageForCode maps an API error code to a student-facing message.
func MessageForCode(code string) string {
	switch code {
	case CodeInvalidCredentials:
		return MsgInvalidCredentials
	case CodeEmailTaken:
		return MsgEmailTaken
	case CodeRollNumberTaken:
		return MsgRollNumberTaken
	case CodeInvalidRequest:
		return MsgInvalidDetails
	case CodeRateLimited:
		return MsgRateLimited
	default:
		return ""
	}
}

func failed(msg string) authstate.Outcome {
	return authstate.Outcome{Success: false, Message: msg}
}
