// Package middleware adapts goSession.Engine to net/http.
//
// # Handlers
//
//   - [Guard] validates the bearer credential and touches the subject's
//     presence, as every authenticated request should.
//   - [RequireToken] validates the credential without any presence write.
//   - [RateLimit] gates requests with a fixed-window counter per client.
//
// Guards read the Authorization header and place the verified claims and
// the client IP in the request context. All state lives in the Engine;
// this package only translates HTTP semantics.
package middleware
