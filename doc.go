// Package goSession is the session and token state layer: it mints and
// validates signed bearer credentials, revokes them before expiry, tracks
// user presence, rate-limits callers, caches values and keeps server-side
// sessions, all through one [kv.Store] capability.
//
// The capability is chosen once at [Builder.Build]: Redis when configured
// and reachable, otherwise an in-process store for the life of the
// process. [Engine.Backend] reports the choice and the fallback reason.
//
// Engine methods are safe to call from multiple goroutines after Build.
//
// # Availability policy
//
// Config.Availability.FailOpen is the single switch deciding what reads do
// when the backend errors. Fail-open (the default) answers with the
// negative value: not blacklisted, not online, cache miss, request allowed.
// This keeps the service up during an outage at the cost of honoring a
// revoked credential until the backend returns. Fail-closed surfaces
// [ErrBackendUnavailable] instead. Writes always report the error, except
// LogActivity, which is fire-and-forget.
//
// # What this package must NOT do
//
//   - Keep package-level mutable state; every dependency hangs off Engine.
//   - Re-evaluate the backend choice after Build.
//   - Distinguish why a credential failed validation to the caller.
package goSession
