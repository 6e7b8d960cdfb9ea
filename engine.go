package rotauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rotauth/rotauth/internal"
	internalaudit "github.com/rotauth/rotauth/internal/audit"
	"github.com/rotauth/rotauth/internal/rate"
	"github.com/rotauth/rotauth/jwt"
	"github.com/rotauth/rotauth/tokenstore"
)

// Engine defines a public type used by rotauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	directory   UserDirectory
	verifier    PasswordVerifier
	store       TokenStore
	codec       *jwt.Codec
	rateLimiter *rate.Limiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.directory == nil || e.verifier == nil || e.store == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		key := ip
		if key == "" {
			key = username
		}
		decision, err := e.rateLimiter.TryAcquire(ctx, key, rate.EndpointLogin)
		if err != nil {
			e.emitAudit(ctx, auditEventLoginFailed, internalaudit.SeverityWarning, false, "", "", err, nil)
			return nil, err
		}
		if !decision.Allowed {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{
					"identifier": username,
				}
			})
			return nil, &RateLimitError{Endpoint: "login", RetryAfter: decision.RetryAfter}
		}
	}

	acct, err := e.directory.FindByUsername(ctx, username)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, internalaudit.SeverityWarning, false, "", "", ErrAuthenticationFailed, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "unknown_user",
			}
		})
		return nil, ErrAuthenticationFailed
	}

	ok, err := e.verifier.Verify(password, acct.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, internalaudit.SeverityWarning, false, acct.ID, "", ErrAuthenticationFailed, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "bad_credentials",
			}
		})
		return nil, ErrAuthenticationFailed
	}

	if !acct.Enabled {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailed, internalaudit.SeverityWarning, false, acct.ID, "", ErrAuthenticationFailed, func() map[string]string {
			return map[string]string{
				"identifier": username,
				"reason":     "account_disabled",
			}
		})
		return nil, ErrAuthenticationFailed
	}

	// Single-session policy: a fresh login invalidates every refresh token
	// the account still holds.
	if _, err := e.store.DeleteAllByOwner(ctx, acct.ID); err != nil {
		return nil, err
	}

	pair, err := e.issueTokenPair(ctx, acct, acct.Roles)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventTokenIssued, internalaudit.SeverityInfo, true, acct.ID, internal.TokenPrefix(pair.refreshToken), nil, func() map[string]string {
		return map[string]string{
			"identifier": username,
		}
	})

	return &LoginResult{
		AccessToken:  pair.accessToken,
		RefreshToken: pair.refreshToken,
		Principal:    principalFromAccount(acct),
	}, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The presented refresh token is revoked before the replacement pair is
// minted, so a crash mid-rotation strands the client rather than leaving a
// live token behind. Presenting an already-revoked token is treated as
// theft: every token of the owner is revoked and [ErrTokenReuseDetected]
// is returned.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if e == nil || e.directory == nil || e.store == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, "", "", err, func() map[string]string {
			return map[string]string{
				"reason": "verify_failed",
			}
		})
		return nil, ErrInvalidToken
	}
	if claims.Kind() != jwt.KindRefresh {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, claims.UserID, "", ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "wrong_kind",
			}
		})
		return nil, ErrInvalidToken
	}

	tokenID := internal.TokenPrefix(refreshToken)

	if e.rateLimiter != nil {
		key := clientIPFromContext(ctx)
		if key == "" {
			key = claims.UserID
		}
		decision, err := e.rateLimiter.TryAcquire(ctx, key, rate.EndpointRefresh)
		if err != nil {
			e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, claims.UserID, tokenID, err, nil)
			return nil, err
		}
		if !decision.Allowed {
			e.metricInc(MetricRefreshRateLimited)
			e.emitRateLimit(ctx, "refresh", func() map[string]string {
				return map[string]string{
					"principal": claims.UserID,
				}
			})
			return nil, &RateLimitError{Endpoint: "refresh", RetryAfter: decision.RetryAfter}
		}
	}

	hash := internal.HashTokenValue(refreshToken)

	rec, err := e.store.FindByValue(ctx, hash)
	if err != nil {
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, claims.UserID, tokenID, ErrInvalidToken, func() map[string]string {
				return map[string]string{
					"reason": "unknown_token",
				}
			})
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if rec.Revoked {
		return nil, e.handleReuse(ctx, rec.OwnerID, tokenID)
	}

	if rec.ExpiresAt.Before(time.Now()) {
		// Expired tokens fail without mutating anything; expiry is not theft.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, rec.OwnerID, tokenID, ErrInvalidToken, func() map[string]string {
			return map[string]string{
				"reason": "expired",
			}
		})
		return nil, ErrInvalidToken
	}

	acct, err := e.directory.FindByID(ctx, rec.OwnerID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, rec.OwnerID, tokenID, ErrUserNotFound, nil)
		return nil, ErrUserNotFound
	}
	if !acct.Enabled {
		if _, err := e.store.DeleteAllByOwner(ctx, rec.OwnerID); err != nil {
			return nil, err
		}
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricCascadeRevocation)
		e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, rec.OwnerID, tokenID, ErrAuthenticationFailed, func() map[string]string {
			return map[string]string{
				"reason": "account_disabled",
			}
		})
		return nil, ErrAuthenticationFailed
	}

	// Revoke first, issue second. Exactly one concurrent caller wins the
	// compare-and-revoke; losers are classified as reuse.
	switch err := e.store.CompareAndRevoke(ctx, hash); {
	case err == nil:
	case errors.Is(err, tokenstore.ErrAlreadyRevoked):
		return nil, e.handleReuse(ctx, rec.OwnerID, tokenID)
	case errors.Is(err, tokenstore.ErrTokenNotFound), errors.Is(err, tokenstore.ErrTokenExpired):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailed, internalaudit.SeverityWarning, false, rec.OwnerID, tokenID, ErrInvalidToken, nil)
		return nil, ErrInvalidToken
	default:
		return nil, err
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventRefreshTokenInvalidated, internalaudit.SeverityInfo, true, rec.OwnerID, tokenID, nil, nil)

	scope := claims.Scope
	if len(scope) == 0 {
		scope = acct.Roles
	}

	pair, err := e.issueTokenPair(ctx, acct, scope)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricTokenIssued)
	e.emitAudit(ctx, auditEventRefreshTokenIssued, internalaudit.SeverityInfo, true, acct.ID, internal.TokenPrefix(pair.refreshToken), nil, func() map[string]string {
		return map[string]string{
			"rotated_from": tokenID,
		}
	})

	return &RefreshResult{
		AccessToken:  pair.accessToken,
		RefreshToken: pair.refreshToken,
	}, nil
}

func (e *Engine) handleReuse(ctx context.Context, ownerID, tokenID string) error {
	revoked, err := e.store.DeleteAllByOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	e.metricInc(MetricReuseDetected)
	e.metricInc(MetricCascadeRevocation)
	e.emitAudit(ctx, auditEventTokenReuseDetected, internalaudit.SeverityCritical, false, ownerID, tokenID, ErrTokenReuseDetected, func() map[string]string {
		return map[string]string{
			"revoked_count": strconv.Itoa(revoked),
		}
	})

	return ErrTokenReuseDetected
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Revoking an already-revoked token is a no-op so logout stays idempotent.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if e == nil || e.store == nil || e.codec == nil {
		return ErrEngineNotReady
	}

	claims, err := e.codec.Verify(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	if claims.Kind() != jwt.KindRefresh {
		return ErrInvalidToken
	}

	hash := internal.HashTokenValue(refreshToken)
	tokenID := internal.TokenPrefix(refreshToken)

	switch err := e.store.CompareAndRevoke(ctx, hash); {
	case err == nil:
	case errors.Is(err, tokenstore.ErrAlreadyRevoked):
		return nil
	case errors.Is(err, tokenstore.ErrTokenNotFound), errors.Is(err, tokenstore.ErrTokenExpired):
		return ErrInvalidToken
	default:
		return err
	}

	e.metricInc(MetricTokenRevoked)
	e.emitAudit(ctx, auditEventTokenRemoved, internalaudit.SeverityInfo, true, claims.UserID, tokenID, nil, func() map[string]string {
		return map[string]string{
			"reason": "revoked",
		}
	})

	return nil
}

// RevokeAll describes the revokeall operation and its observable behavior.
//
// RevokeAll may return an error when input validation, dependency calls, or security checks fail.
// RevokeAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RevokeAll(ctx context.Context, ownerID string) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.store.DeleteAllByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	if revoked > 0 {
		e.metricInc(MetricCascadeRevocation)
		e.emitAudit(ctx, auditEventTokenRemoved, internalaudit.SeverityInfo, true, ownerID, "", nil, func() map[string]string {
			return map[string]string{
				"reason":        "revoke_all",
				"revoked_count": strconv.Itoa(revoked),
			}
		})
	}

	return revoked, nil
}

// SweepExpired describes the sweepexpired operation and its observable behavior.
//
// SweepExpired may return an error when input validation, dependency calls, or security checks fail.
// SweepExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	removed, err := e.store.DeleteExpiredBefore(ctx, time.Now())
	if err != nil {
		return removed, err
	}

	if removed > 0 {
		e.metricInc(MetricExpiredSweep)
		e.emitAudit(ctx, auditEventTokenRemoved, internalaudit.SeverityInfo, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"reason":        "expired_sweep",
				"removed_count": strconv.Itoa(removed),
			}
		})
	}

	return removed, nil
}

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Validation is purely cryptographic; no store round trip happens on the
// access path.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil || e.codec == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()

	claims, err := e.codec.Verify(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Kind() != jwt.KindAccess {
		return nil, ErrInvalidToken
	}

	if e.metrics != nil {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}

	return &AuthResult{
		UserID:  claims.UserID,
		Subject: claims.Subject,
		Scope:   claims.Scope,
	}, nil
}

type tokenPair struct {
	accessToken  string
	refreshToken string
}

func (e *Engine) issueTokenPair(ctx context.Context, acct Account, scope []string) (tokenPair, error) {
	access, err := e.codec.Issue(acct.Username, acct.ID, scope, jwt.KindAccess, e.config.JWT.AccessTTL)
	if err != nil {
		return tokenPair{}, err
	}

	refresh, err := e.codec.Issue(acct.Username, acct.ID, scope, jwt.KindRefresh, e.config.JWT.RefreshTTL)
	if err != nil {
		return tokenPair{}, err
	}

	now := time.Now()
	rec := &tokenstore.Record{
		ID:        uuid.NewString(),
		OwnerID:   acct.ID,
		ValueHash: internal.HashTokenValue(refresh),
		Scope:     scope,
		ExpiresAt: now.Add(e.config.JWT.RefreshTTL),
		CreatedAt: now,
	}
	if err := e.store.Save(ctx, rec); err != nil {
		return tokenPair{}, err
	}

	return tokenPair{accessToken: access, refreshToken: refresh}, nil
}
