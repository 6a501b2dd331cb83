package goReset

import "errors"

var (
	// ErrRateLimited is returned by Issue when the account or IP ceiling for
	// the current window is exhausted.
	ErrRateLimited = errors.New("password reset rate limited")
	// ErrTokenNotFound means the token never existed or was already swept.
	ErrTokenNotFound = errors.New("reset token not found")
	// ErrTokenExpired means the token outlived its TTL.
	ErrTokenExpired = errors.New("reset token expired")
	// ErrTokenAlreadyUsed means the token was consumed or burned.
	ErrTokenAlreadyUsed = errors.New("reset token already used")
	// ErrWrongAnswer means the captcha answer did not match. The token stays
	// usable while attempts remain.
	ErrWrongAnswer = errors.New("captcha answer incorrect")
	// ErrTooManyAttempts means the last wrong answer exhausted the attempt
	// cap and burned the token.
	ErrTooManyAttempts = errors.New("reset attempts exceeded")
	// ErrPasswordUpdateFailed is returned after a successful consume when the
	// account provider could not store the new password. The token stays
	// consumed.
	ErrPasswordUpdateFailed = errors.New("password update failed")
	// ErrNotificationFailed is delivered on IssueResult.Delivery. It is a
	// warning only; the issued token remains valid.
	ErrNotificationFailed = errors.New("reset notification failed")
	ErrResetInvalid       = errors.New("invalid password reset request")
	ErrAccountNotFound    = errors.New("account not found")
	ErrResetUnavailable   = errors.New("password reset backend unavailable")
	ErrEngineNotReady     = errors.New("engine not initialized")
	ErrPasswordPolicy     = errors.New("password does not meet policy")
)

// FailureReason returns a stable, machine-readable reason for err. It
// returns "" for nil and "internal_error" for anything unrecognized.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	return string(auditErrorCode(err))
}
