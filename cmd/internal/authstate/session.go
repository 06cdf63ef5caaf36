package authstate

// Status is the coarse authentication status of a visitor.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusChecking
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "invalid"
	}
}

// Identity is the signed-in student as the portal needs to show it.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	RollNumber  string `json:"roll_number,omitempty"`
}

// Session is an immutable snapshot of a visitor's state.
//
// The zero value is Unknown(). The only other constructors are Checking,
// Anonymous and Authenticated, so an identity exists exactly when the status
// is StatusAuthenticated.
type Session struct {
	status   Status
	identity *Identity
}

func Unknown() Session   { return Session{status: StatusUnknown} }
func Checking() Session  { return Session{status: StatusChecking} }
func Anonymous() Session { return Session{status: StatusAnonymous} }

// Authenticated returns a session signed in as id.
func Authenticated(id Identity) Session {
	return Session{status: StatusAuthenticated, identity: &id}
}

func (s Session) Status() Status { return s.status }

// Identity returns the signed-in identity; ok is false unless authenticated.
func (s Session) Identity() (id Identity, ok bool) {
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

func (s Session) IsAuthenticated() bool { return s.status == StatusAuthenticated }

// Loading reports whether the status is still indeterminate.
func (s Session) Loading() bool {
	return s.status == StatusUnknown || s.status == StatusChecking
}

func (s Session) equal(o Session) bool {
	if s.status != o.status {
		return false
	}
	if s.identity == nil || o.identity == nil {
		return s.identity == o.identity
	}
	return *s.identity == *o.identity
}
