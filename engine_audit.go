package credcore

import (
	"context"
	"errors"
	"time"
)

// Audit event types emitted by the engine.
const (
	AuditEventLoginSuccess         = "login_success"
	AuditEventLoginFailure         = "login_failure"
	AuditEventPasswordRehash       = "password_rehash"
	AuditEventRefreshSuccess       = "refresh_success"
	AuditEventRefreshFailure       = "refresh_failure"
	AuditEventRefreshReuseDetected = "refresh_reuse_detected"
	AuditEventLogout               = "logout"
	AuditEventRevokeAll            = "revoke_all"
)

// AuditErrorCode is the stable, non-sensitive failure code carried in
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

// emitAudit stamps event with the time, the request metadata on ctx and the
// outcome of err, then hands it to the dispatcher. A nil err means success.
func (e *Engine) emitAudit(ctx context.Context, event AuditEvent, err error) {
	if e == nil || e.audit == nil {
		return
	}
	meta := metaFrom(ctx)
	event.Timestamp = time.Now().UTC()
	event.IP = meta.ip
	event.UserAgent = meta.userAgent
	event.Success = err == nil
	event.Error = string(auditErrorCode(err))
	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	// Reuse is checked first: a failed revoke-all joins a storage error onto it.
	switch {
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrRefreshReuse
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrAccessTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
