// Package session provides server-side session records stored through
// kv.Store under <prefix>:session:<id>.
//
// A record holds the owning user, free-form data and timestamps. It expires
// with its key; an expired session is indistinguishable from one that was
// never created.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT
// interpret bearer credentials or decide availability policy; those belong
// to the Engine.
//
// # What this package must NOT do
//
//   - Import goSession or jwt (no upward imports).
//   - Store plaintext secrets in [Session] data.
package session
