package internaldefs

import (
	rotauth "github.com/rotauth/rotauth"
)

// CounterDef defines a public type used by rotauth APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   rotauth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by rotauth APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   rotauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the token lifecycle engine.
var CounterDefs = []CounterDef{
	{ID: rotauth.MetricLoginSuccess, Name: "rotauth_login_success_total", Help: "Successful login attempts."},
	{ID: rotauth.MetricLoginFailure, Name: "rotauth_login_failure_total", Help: "Failed login attempts."},
	{ID: rotauth.MetricLoginRateLimited, Name: "rotauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: rotauth.MetricRefreshSuccess, Name: "rotauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: rotauth.MetricRefreshFailure, Name: "rotauth_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: rotauth.MetricRefreshRateLimited, Name: "rotauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: rotauth.MetricReuseDetected, Name: "rotauth_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: rotauth.MetricCascadeRevocation, Name: "rotauth_cascade_revocation_total", Help: "Owner-wide cascade revocations."},
	{ID: rotauth.MetricTokenIssued, Name: "rotauth_token_issued_total", Help: "Issued token pairs."},
	{ID: rotauth.MetricTokenRevoked, Name: "rotauth_token_revoked_total", Help: "Revoked refresh tokens."},
	{ID: rotauth.MetricExpiredSweep, Name: "rotauth_expired_sweep_total", Help: "Expired-token sweep runs that removed records."},
	{ID: rotauth.MetricRateLimitHit, Name: "rotauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the token lifecycle engine.
var HistogramDefs = []HistogramDef{
	{ID: rotauth.MetricValidateLatency, Name: "rotauth_validate_latency_seconds", Help: "Access-token validation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the token lifecycle engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the token lifecycle engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
