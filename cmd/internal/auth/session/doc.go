// Package session implements server-side portal sessions.
//
// A session is a row (memory, Redis or Postgres) plus a signed bearer token
// that names it. Validation checks the token signature first and then the
// stored row, so revocation (logout) takes effect immediately.
//
// Transport (cookies, headers) is out of scope here.
package session
