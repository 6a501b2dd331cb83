package goReset

import (
	"context"

	"github.com/MrEthical07/goReset/internal"
	internalflows "github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/password"
)

// Verify redeems tokenID with a captcha answer and, on success, sets the
// account's new password.
//
// At most one Verify per token can succeed. Failures before the password
// write return OutcomeVerifyFailed with one of ErrTokenNotFound,
// ErrTokenExpired, ErrTokenAlreadyUsed, ErrWrongAnswer or
// ErrTooManyAttempts. A failed password write returns
// OutcomePasswordUpdateFailed with ErrPasswordUpdateFailed; the token stays
// consumed and the user must start over.
//
// The password policy is checked before the token is touched, so a
// rejected password does not burn it.
func (e *Engine) Verify(ctx context.Context, tokenID, answer, newPassword string) (VerifyResult, error) {
	if !e.ready() {
		return VerifyResult{}, ErrEngineNotReady
	}
	res, err := e.flows.Verify(ctx, tokenID, answer, newPassword)
	return VerifyResult{
		Outcome:    res.Outcome,
		AccountRef: res.AccountRef,
		Reason:     res.Reason,
	}, err
}

func (e *Engine) verifyFlowDeps() internalflows.VerifyDeps {
	cfg := e.config
	policy := password.Policy{MinLength: cfg.Password.MinLength, MaxLength: cfg.Password.MaxLength}

	return internalflows.VerifyDeps{
		SetPasswordTimeout: cfg.Reset.SetPasswordTimeout,

		TenantIDFromContext: tenantIDFromContext,
		Now:                 e.now,

		WellFormedTokenID: func(tokenID string) bool {
			_, err := internal.ParseTokenID(tokenID)
			return err == nil
		},
		CheckPasswordPolicy: policy.Validate,

		ConsumeToken: func(ctx context.Context, tenantID, tokenID, answer string) (internalflows.Token, error) {
			rec, err := e.store.ConsumeIfValid(ctx, tenantID, tokenID, answer)
			return toFlowToken(rec), err
		},
		MapStoreError: mapStoreError,
		SetPassword: func(ctx context.Context, accountRef, tenantID, newPassword string) error {
			return e.accounts.SetPassword(WithTenantID(ctx, tenantID), accountRef, newPassword)
		},

		Logf:           logf,
		MetricInc:      e.metricInc,
		ObserveLatency: e.observeVerifyLatency,
		EmitAudit:      e.emitAudit,
		FailureReason:  FailureReason,

		Metrics: internalflows.VerifyMetrics{
			Success:               int(MetricVerifySuccess),
			Failure:               int(MetricVerifyFailure),
			Expired:               int(MetricVerifyExpired),
			Replay:                int(MetricVerifyReplay),
			WrongAnswer:           int(MetricVerifyWrongAnswer),
			AttemptsExceeded:      int(MetricVerifyAttemptsExceeded),
			PasswordUpdateFailure: int(MetricPasswordUpdateFailure),
		},
		Events: internalflows.VerifyEvents{
			Verify:               auditEventResetVerify,
			Replay:               auditEventResetReplay,
			PasswordUpdateFailed: auditEventPasswordUpdateFailed,
		},
		Errors: internalflows.VerifyErrors{
			EngineNotReady:       ErrEngineNotReady,
			Invalid:              ErrResetInvalid,
			NotFound:             ErrTokenNotFound,
			Expired:              ErrTokenExpired,
			AlreadyUsed:          ErrTokenAlreadyUsed,
			WrongAnswer:          ErrWrongAnswer,
			TooManyAttempts:      ErrTooManyAttempts,
			PasswordUpdateFailed: ErrPasswordUpdateFailed,
			PasswordPolicy:       ErrPasswordPolicy,
			Unavailable:          ErrResetUnavailable,
		},
	}
}
