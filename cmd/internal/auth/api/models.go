package api

import (
	"net/http"

	"projectbank/cmd/internal/auth/backend"
	"projectbank/cmd/internal/authstate"
	authv1 "projectbank/shared/contracts/auth/v1"
)

func toUserResponse(id *authstate.Identity) authv1.User {
	if id == nil {
		return authv1.User{}
	}
	return backend.ToUser(*id)
}

func toSessionResponse(out authstate.Outcome) authv1.Session {
	return authv1.Session{Token: out.Token, ExpiresAt: out.ExpiresAt}
}

func registerFailure(msg string) (status int, code string) {
	switch msg {
	case backend.MsgEmailTaken:
		return http.StatusConflict, backend.CodeEmailTaken
	case backend.MsgRollNumberTaken:
		return http.StatusConflict, backend.CodeRollNumberTaken
	default:
		return http.StatusBadRequest, backend.CodeInvalidRequest
	}
}
