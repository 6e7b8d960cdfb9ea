// Package rate provides Redis-backed token-bucket admission control for
// security-sensitive token lifecycle operations.
//
// # Bucket semantics
//
// One Redis hash per (endpoint, key) pair under the "arl:" prefix, holding
// the remaining token count and the last refill timestamp. A Lua script
// refills lazily and decrements atomically; the caller supplies the clock.
//
// A Redis failure denies the request. Admission control fails closed.
//
// # What this package must NOT do
//
//   - Decide which key to throttle on (the Engine chooses client IP or username).
//   - Be imported outside the rotauth module.
package rate
