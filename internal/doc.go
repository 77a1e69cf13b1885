// Package internal contains helpers private to goSession, currently session
// id generation.
//
// # Sub-packages
//
//   - activity — async activity-log dispatch (Dispatcher + Sink implementations)
//   - codec — JSON/CBOR value encoding with optional zstd compression
//   - config — YAML service configuration for cmd/sessiond
//   - presence — online markers and last-activity records
//   - rate — fixed-window rate limiter
//   - server — gin HTTP surface for cmd/sessiond
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSession API.
//   - Be imported by any package outside the goSession module.
package internal
