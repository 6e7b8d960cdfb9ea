// Package middleware exposes HTTP adapters for bearer-token enforcement built
// on top of rotauth.Engine validation.
//
// # Guards
//
//   - [Guard] — stateless access-token verification on every request.
//   - [ClientIP] — Forwarded-For-aware caller address resolution.
//
// The guard reads the Authorization header, calls Engine.ValidateAccess, and
// injects the validated identity into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement token logic itself — all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.ValidateAccess.
package middleware
