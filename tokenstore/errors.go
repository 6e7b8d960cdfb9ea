package tokenstore

import "errors"

var (
	// ErrTokenNotFound is an exported constant or variable used by the token lifecycle engine.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is an exported constant or variable used by the token lifecycle engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrAlreadyRevoked is an exported constant or variable used by the token lifecycle engine.
	ErrAlreadyRevoked = errors.New("token already revoked")
	// ErrRecordCorrupt is an exported constant or variable used by the token lifecycle engine.
	ErrRecordCorrupt = errors.New("token record corrupt")
	// ErrRedisUnavailable is an exported constant or variable used by the token lifecycle engine.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
