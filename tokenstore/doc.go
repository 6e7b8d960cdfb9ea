// Package tokenstore persists refresh token records in Redis.
//
// # Key layout
//
//   - <prefix>:t:<hex sha256>  — one record blob per token, TTL = token expiry
//   - <prefix>:o:<owner id>    — set of the owner's token hashes, for cascades
//
// Records are keyed by the SHA-256 of the token value; raw tokens never
// touch Redis. The blob is a small versioned binary encoding with the
// revoked flag and expiry at fixed offsets so the compare-and-revoke Lua
// script can test and flip them without a round trip.
//
// # Architecture boundaries
//
// This package owns persistence only. Rotation ordering, reuse
// classification, and audit emission belong to the Engine.
//
// # What this package must NOT do
//
//   - Interpret a revoked record as an error (the Engine decides).
//   - Store or log raw token material.
package tokenstore
