// Package activity implements fire-and-forget delivery of user activity-log
// entries.
//
// # Components
//
//   - [Event] is one log entry: user, action, client IP, time, metadata.
//   - [Sink] consumes events; [StoreSink] persists them through kv.Store
//     under <prefix>:activity:<user>:<unix-nanos> with a 7-day TTL. The user
//     segment goes through kv.EscapeID.
//   - [Dispatcher] is a buffered async relay with drop-if-full or
//     block-if-full semantics. A single worker (the default) keeps each
//     user's entries in emit order; more workers trade that for throughput.
//
// Sinks never return errors to the emitter. Failures are reported through
// the optional error callback and otherwise swallowed.
//
// # What this package must NOT do
//
//   - Decide which actions get logged; that belongs to the Engine.
//   - Offer a read path. The log is write-only.
package activity
