// Package backend is the authentication collaborator behind the portal's
// auth state: it restores, creates and ends student sessions.
//
// Service runs in-process over the identity store and the session service.
// Client talks to a remote auth API (see auth/api) with the same contract.
// Rejected attempts come back as an unsuccessful authstate.Outcome with a
// message for the student; only infrastructure failures are returned as errors.
package backend
