package rotauth

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/rotauth/rotauth/internal/audit"
	"github.com/rotauth/rotauth/internal/rate"
	"github.com/rotauth/rotauth/jwt"
	"github.com/rotauth/rotauth/tokenstore"
)

const (
	auditEventTokenIssued             = "token.issued"
	auditEventRefreshTokenIssued      = "token.rotation.refresh_token_issued"
	auditEventRefreshTokenInvalidated = "token.rotation.refresh_token_invalidated"
	auditEventTokenRemoved            = "token.removed"
	auditEventTokenReuseDetected      = "token.reuse_detected"
	auditEventLoginFailed             = "login.failed"
	auditEventRefreshFailed           = "refresh.failed"
	auditEventRateLimitTriggered      = "rate_limit.triggered"
)

// AuditErrorCode defines a public type used by rotauth APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrAuthenticationFailed AuditErrorCode = "authentication_failed"
	auditErrInvalidToken         AuditErrorCode = "invalid_token"
	auditErrTokenReuse           AuditErrorCode = "token_reuse_detected"
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrUserNotFound         AuditErrorCode = "user_not_found"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	severity string,
	success bool,
	principalID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:   time.Now().UTC(),
		EventType:   eventType,
		Severity:    severity,
		PrincipalID: principalID,
		TokenID:     tokenID,
		ClientIP:    clientIPFromContext(ctx),
		Success:     success,
		Metadata:    metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, internalaudit.SeverityWarning, false, "", "", ErrRateLimitExceeded, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrTokenReuse
	case errors.Is(err, ErrAuthenticationFailed):
		return auditErrAuthenticationFailed
	case errors.Is(err, ErrRateLimitExceeded):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, jwt.ErrMalformed),
		errors.Is(err, jwt.ErrInvalidSignature),
		errors.Is(err, jwt.ErrExpired):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, tokenstore.ErrRedisUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
