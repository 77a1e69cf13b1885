// Package rate implements the fixed-window request limiter on top of
// kv.Store.
//
// # Window semantics
//
// The first hit for an identifier creates a counter of 1 that expires after
// the window. Later hits increment it without touching its expiry until it
// reaches the limit; from then on hits are rejected without incrementing
// and the counter's remaining TTL is the retry hint. The counter resets
// exactly when its key expires.
//
// Counters live under <prefix>:ratelimit:<id>.
//
// # What this package must NOT do
//
//   - Decide what happens when the backend fails; errors are returned as-is
//     and the caller applies its availability policy.
//   - Be imported outside the goSession module.
package rate
