// Package internal contains helper utilities that are intentionally private to rotauth,
// including token hashing and audit-safe correlation prefixes.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed token-bucket admission control
//
// # What this package must NOT do
//
//   - Export types that appear in the public rotauth API.
//   - Be imported by any package outside the rotauth module.
package internal
