package goReset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventResetIssue           = "reset_issue"
	auditEventResetRateLimited     = "reset_rate_limited"
	auditEventResetNotifySent      = "reset_notify_sent"
	auditEventResetNotifyFailed    = "reset_notify_failed"
	auditEventResetVerify          = "reset_verify"
	auditEventResetReplay          = "reset_replay"
	auditEventPasswordUpdateFailed = "reset_password_update_failed"
)

// AuditErrorCode is the stable error classification written to
// AuditEvent.Error and returned by FailureReason.
type AuditErrorCode string

const (
	auditErrRateLimited          AuditErrorCode = "rate_limited"
	auditErrTokenNotFound        AuditErrorCode = "token_not_found"
	auditErrTokenExpired         AuditErrorCode = "token_expired"
	auditErrTokenAlreadyUsed     AuditErrorCode = "token_already_used"
	auditErrWrongAnswer          AuditErrorCode = "wrong_answer"
	auditErrTooManyAttempts      AuditErrorCode = "too_many_attempts"
	auditErrPasswordUpdateFailed AuditErrorCode = "password_update_failed"
	auditErrNotificationFailed   AuditErrorCode = "notification_failed"
	auditErrInvalidRequest       AuditErrorCode = "invalid_request"
	auditErrAccountNotFound      AuditErrorCode = "account_not_found"
	auditErrPasswordPolicy       AuditErrorCode = "password_policy"
	auditErrUnavailable          AuditErrorCode = "backend_unavailable"
	auditErrInternal             AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountRef string,
	tenantID string,
	tokenID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}
	if tenantID == "" {
		tenantID = tenantIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventID:    uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		AccountRef: accountRef,
		TenantID:   tenantID,
		TokenHint:  tokenHint(tokenID),
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// tokenHint is enough to correlate events for one token without letting an
// audit reader redeem it.
func tokenHint(tokenID string) string {
	if tokenID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(tokenID))
	return hex.EncodeToString(sum[:4])
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrPasswordUpdateFailed):
		return auditErrPasswordUpdateFailed
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenNotFound):
		return auditErrTokenNotFound
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenAlreadyUsed):
		return auditErrTokenAlreadyUsed
	case errors.Is(err, ErrWrongAnswer):
		return auditErrWrongAnswer
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrTooManyAttempts
	case errors.Is(err, ErrNotificationFailed):
		return auditErrNotificationFailed
	case errors.Is(err, ErrResetInvalid):
		return auditErrInvalidRequest
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrResetUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
