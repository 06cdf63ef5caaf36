// Package v1 defines the Project Bank auth wire contract, version 1.
//
// It is shared by the auth API server, the remote backend client and the
// portal's live status stream so both ends agree on field names.
package v1

import (
	"errors"
	"fmt"
	"time"
)

// Version is embedded into every status frame.
const Version = 1

// HTTP routes served by the auth API.
const (
	PathLogin     = "/api/auth/login"
	PathRegister  = "/api/auth/register"
	PathSession   = "/api/auth/session"
	PathLogout    = "/api/auth/logout"
	PathLogoutAll = "/api/auth/logout-all"
)

// Status frame types (server -> client).
const (
	TypeStatus = "auth.status"
	TypeError  = "error"
)

// Auth statuses carried by a status frame.
const (
	StatusUnknown       = "unknown"
	StatusChecking      = "checking"
	StatusAuthenticated = "authenticated"
	StatusAnonymous     = "anonymous"
)

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type RegisterRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	RollNumber string `json:"roll_number"`
	Department string `json:"department"`
	Semester   int    `json:"semester"`
	Password   string `json:"password"`
}

type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	RollNumber  string `json:"roll_number"`
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginResponse struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

type RegisterResponse struct {
	User User `json:"user"`
}

// SessionResponse answers GET /api/auth/session for a live token.
type SessionResponse struct {
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the error envelope of every non-2xx response.
type ErrorResponse struct {
	Error Error `json:"error"`
}

// StatusFrame is pushed on the portal's /ws/auth stream whenever a
// visitor's auth status changes.
type StatusFrame struct {
	V      int       `json:"v"`
	Type   string    `json:"type"`
	TS     time.Time `json:"ts"`
	Status string    `json:"status,omitempty"`
	User   *User     `json:"user,omitempty"`
	Error  *Error    `json:"error,omitempty"`
}

func (f StatusFrame) Validate() error {
	if f.V != Version {
		return fmt.Errorf("invalid protocol version: got=%d want=%d", f.V, Version)
	}
	if f.TS.IsZero() {
		return errors.New("missing ts")
	}
	switch f.Type {
	case TypeStatus:
		switch f.Status {
		case StatusUnknown, StatusChecking, StatusAnonymous:
			if f.User != nil {
				return fmt.Errorf("user present with status %s", f.Status)
			}
		case StatusAuthenticated:
			if f.User == nil {
				return errors.New("missing user for authenticated status")
			}
		default:
			return fmt.Errorf("unsupported status: %s", f.Status)
		}
	case TypeError:
		if f.Error == nil {
			return errors.New("missing error")
		}
	case "":
		return errors.New("missing type")
	default:
		return fmt.Errorf("unsupported type: %s", f.Type)
	}
	return nil
}
