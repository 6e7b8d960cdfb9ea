package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Endpoint identifies which operation a bucket guards.
type Endpoint string

const (
	// EndpointLogin is an exported constant or variable used by the token lifecycle engine.
	EndpointLogin Endpoint = "login"
	// EndpointRefresh is an exported constant or variable used by the token lifecycle engine.
	EndpointRefresh Endpoint = "refresh"
)

// Profile describes one token bucket: Capacity tokens at most, with
// RefillTokens added back every RefillPeriod.
type Profile struct {
	Capacity     int
	RefillTokens int
	RefillPeriod time.Duration
}

// Config holds the per-endpoint bucket profiles.
type Config struct {
	Enabled  bool
	Profiles map[Endpoint]Profile
}

// Decision is the outcome of an admission check. RetryAfter is non-zero
// only when the request was denied by an exhausted bucket.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter enforces per-key token buckets for login and refresh operations
// using Redis hashes. Buckets refill lazily on access; no background
// goroutine touches Redis.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// tokenBucketScript refills and decrements a bucket atomically. The caller
// supplies the clock so behavior is deterministic under test.
//
// KEYS[1] — bucket hash key
// ARGV[1] — capacity
// ARGV[2] — tokens added per refill period
// ARGV[3] — refill period in milliseconds
// ARGV[4] — current time in milliseconds
// ARGV[5] — key TTL in milliseconds
//
// Returns {allowed (0|1), retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local period = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'refilled_at')
local tokens = tonumber(state[1])
local refilled_at = tonumber(state[2])

if tokens == nil or refilled_at == nil then
  tokens = capacity
  refilled_at = now
end

local elapsed = now - refilled_at
if elapsed >= period then
  local periods = math.floor(elapsed / period)
  tokens = math.min(capacity, tokens + periods * refill)
  refilled_at = refilled_at + periods * period
end

if tokens > 0 then
  tokens = tokens - 1
  redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', refilled_at)
  redis.call('PEXPIRE', KEYS[1], ttl)
  return {1, 0}
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('PEXPIRE', KEYS[1], ttl)
return {0, period - (now - refilled_at)}
`)

// TryAcquire consumes one token from the bucket identified by key and
// endpoint. A Redis failure denies the request: admission control fails
// closed rather than letting an outage disable throttling.
func (l *Limiter) TryAcquire(ctx context.Context, key string, endpoint Endpoint) (Decision, error) {
	if l == nil || !l.config.Enabled {
		return Decision{Allowed: true}, nil
	}

	profile, ok := l.config.Profiles[endpoint]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	now := time.Now()

	// TTL covers a full refill from empty plus one period of slack, so idle
	// buckets disappear on their own.
	periods := (profile.Capacity + profile.RefillTokens - 1) / profile.RefillTokens
	ttl := time.Duration(periods+1) * profile.RefillPeriod

	res, err := tokenBucketScript.Run(ctx, l.redis,
		[]string{bucketKey(endpoint, key)},
		profile.Capacity,
		profile.RefillTokens,
		profile.RefillPeriod.Milliseconds(),
		now.UnixMilli(),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	if res[0] == 1 {
		return Decision{Allowed: true}, nil
	}

	retry := time.Duration(res[1]) * time.Millisecond
	if retry <= 0 {
		retry = profile.RefillPeriod
	}

	return Decision{Allowed: false, RetryAfter: retry}, nil
}

func bucketKey(endpoint Endpoint, key string) string {
	return "arl:" + string(endpoint) + ":" + key
}
