// Package rotauth provides a bearer-credential lifecycle engine with JWT access
// tokens, single-use rotating refresh tokens, reuse detection with cascading
// revocation, and Redis-backed rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// rotauth is the public surface. It exposes [Engine], [Builder], [Config], the
// collaborator contracts ([UserDirectory], [PasswordVerifier], [TokenStore]), and
// value types (LoginResult, RefreshResult, MetricsSnapshot). Internal coordination
// (rate limiting, audit dispatch) lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, record encodings, or Lua scripts in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Transport concerns: no HTTP routing, no cookie handling, no user storage.
//
// # Rotation contract
//
// Every successful Refresh revokes the presented refresh token before issuing a
// replacement. A refresh token observed after its revocation is treated as theft
// evidence: all refresh tokens of the owning principal are revoked and the call
// fails with [ErrTokenReuseDetected].
package rotauth
