package rotauth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthenticationFailed is an exported constant or variable used by the token lifecycle engine.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidToken is an exported constant or variable used by the token lifecycle engine.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenReuseDetected is an exported constant or variable used by the token lifecycle engine.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")
	// ErrRateLimitExceeded is an exported constant or variable used by the token lifecycle engine.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrUserNotFound is an exported constant or variable used by the token lifecycle engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotFound is an exported constant or variable used by the token lifecycle engine.
	ErrNotFound = errors.New("not found")
	// ErrConflict is an exported constant or variable used by the token lifecycle engine.
	ErrConflict = errors.New("conflict")
	// ErrEngineNotReady is an exported constant or variable used by the token lifecycle engine.
	ErrEngineNotReady = errors.New("engine not ready")
)

// RateLimitError reports a denied admission together with a retry-after hint.
// It unwraps to [ErrRateLimitExceeded], so errors.Is matching keeps working
// for callers that do not care about the hint.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Endpoint, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}
