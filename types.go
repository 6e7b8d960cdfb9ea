package rotauth

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/rotauth/rotauth/internal/audit"
	"github.com/rotauth/rotauth/tokenstore"
)

// Account is the full directory record returned by [UserDirectory]. It carries
// the credential hash used for password verification; the hash never leaves the
// engine.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Enabled      bool
	Roles        []string
}

// Principal is the read-only identity view returned to callers in
// [LoginResult]. It never carries credential material.
type Principal struct {
	ID       string
	Username string
	Email    string
	Enabled  bool
	Roles    []string
}

func principalFromAccount(acct Account) Principal {
	roles := make([]string, len(acct.Roles))
	copy(roles, acct.Roles)
	return Principal{
		ID:       acct.ID,
		Username: acct.Username,
		Email:    acct.Email,
		Enabled:  acct.Enabled,
		Roles:    roles,
	}
}

// UserDirectory is the interface callers must implement to integrate rotauth
// with their user database. The engine only reads from it; account lifecycle
// management stays on the caller's side.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
}

// PasswordVerifier checks a plaintext password against a stored credential
// hash. The default implementation is [password.Argon2]; callers migrating
// from another scheme can inject their own.
type PasswordVerifier interface {
	Verify(password, encodedHash string) (bool, error)
}

// TokenStore is the persistence contract for refresh-token records. The
// default implementation is the Redis-backed [tokenstore.Store]; tests and
// alternative backends can substitute their own as long as CompareAndRevoke
// stays atomic (exactly one caller wins per record).
type TokenStore interface {
	Save(ctx context.Context, rec *tokenstore.Record) error
	FindByValue(ctx context.Context, valueHash [32]byte) (*tokenstore.Record, error)
	CompareAndRevoke(ctx context.Context, valueHash [32]byte) error
	DeleteAllByOwner(ctx context.Context, ownerID string) (int, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// LoginResult is returned by [Engine.Login] on success.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	Principal    Principal
}

// RefreshResult is returned by [Engine.Refresh]. Both tokens are freshly
// minted; the presented refresh token is revoked and must be discarded.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by [Engine.ValidateAccess]. It contains the
// authenticated principal's ID, the token subject, and the granted scope.
type AuthResult struct {
	UserID  string
	Subject string
	Scope   []string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
