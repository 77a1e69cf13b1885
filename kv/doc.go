// Package kv defines the TTL key-value capability shared by every stateful
// component of goSession: revocation entries, presence markers, activity
// records, rate counters, sessions and opaque cache values.
//
// # Backends
//
// Two implementations conform to [Store]:
//
//   - kv/redisstore — networked, delegates expiry to native Redis key TTLs.
//   - kv/memory — in-process fallback with lazy eviction.
//
// Callers depend only on [Store]. Absent and expired keys are
// indistinguishable: both surface as [ErrNotFound] or false.
//
// # Key naming
//
// Physical keys follow <app-prefix>:<category>:<id>. Use [Keyspace] to build
// them so prefix invalidation and backend inspection stay unambiguous.
//
// # What this package must NOT do
//
//   - Import goSession or any backend package.
//   - Interpret stored values beyond the integer counters of IncrWindow.
package kv
