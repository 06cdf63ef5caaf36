// Package portal is the RCEW Project Bank web front: it maps every portal
// route to a guard.Rule, keeps one authstate.Provider per visitor and turns
// guard decisions into pages, loading placeholders or redirects.
//
// A visitor is identified by an opaque cookie. Its provider restores the
// session named by the session cookie once, in the background; requests wait
// briefly for that restore before the guard decides. Visitors idle for longer
// than Config.VisitorIdleTTL are dropped and rebuilt on their next request.
package portal
