// Package token issues and parses signed session tokens.
//
// Tokens are HS256 JWTs carrying the session id (jti) and the user id (sub).
// The signing key comes from PB_TOKEN_KEY and must be at least MinKeyBytes long.
// A token is only a bearer handle: the session store stays the source of truth
// for whether a session is still active.
package token
