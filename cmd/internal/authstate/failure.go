package authstate

import "fmt"

const (
	// GenericReason is shown when the backend errored or panicked.
	GenericReason = "An unexpected error occurred. Please try again."

	// DefaultLoginReason is shown when a login fails without a message.
	DefaultLoginReason = "Invalid email or password"

	// DefaultRegisterReason is shown when a registration fails without a message.
	DefaultRegisterReason = "Registration failed. Please try again."
)

// Failure is returned by Login and Register when the action did not succeed.
// Reason is safe to display; Err is set only for unexpected backend errors.
type Failure struct {
	Action string
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authstate: %s failed: %s: %v", f.Action, f.Reason, f.Err)
	}
	return fmt.Sprintf("authstate: %s failed: %s", f.Action, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Unexpected reports whether the failure came from a backend error rather
// than a rejected attempt.
func (f *Failure) Unexpected() bool { return f.Err != nil }
