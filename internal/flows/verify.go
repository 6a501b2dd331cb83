package flows

import (
	"context"
	"errors"
	"time"
)

// VerifyResult is returned by RunVerify. Reason is empty on success.
type VerifyResult struct {
	Outcome    Outcome
	AccountRef string
	TenantID   string
	Reason     string
}

type VerifyMetrics struct {
	Success               int
	Failure               int
	Expired               int
	Replay                int
	WrongAnswer           int
	AttemptsExceeded      int
	PasswordUpdateFailure int
}

type VerifyEvents struct {
	Verify               string
	Replay               string
	PasswordUpdateFailed string
}

type VerifyErrors struct {
	EngineNotReady       error
	Invalid              error
	NotFound             error
	Expired              error
	AlreadyUsed          error
	WrongAnswer          error
	TooManyAttempts      error
	PasswordUpdateFailed error
	PasswordPolicy       error
	Unavailable          error
}

type VerifyDeps struct {
	SetPasswordTimeout time.Duration

	TenantIDFromContext func(context.Context) string
	Now                 func() time.Time

	WellFormedTokenID   func(string) bool
	CheckPasswordPolicy func(string) error

	ConsumeToken  func(context.Context, string, string, string) (Token, error)
	MapStoreError func(error) error
	SetPassword   func(context.Context, string, string, string) error

	Logf           func(string, ...any)
	MetricInc      func(int)
	ObserveLatency func(time.Duration)
	EmitAudit      func(context.Context, string, bool, string, string, string, error, func() map[string]string)
	FailureReason  func(error) string

	Metrics VerifyMetrics
	Events  VerifyEvents
	Errors  VerifyErrors
}

func RunVerify(ctx context.Context, tokenID, answer, newPassword string, deps VerifyDeps) (VerifyResult, error) {
	normalizeVerifyDeps(&deps)

	if deps.ConsumeToken == nil || deps.SetPassword == nil {
		return VerifyResult{}, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() {
		deps.ObserveLatency(deps.Now().Sub(start))
	}()

	tenantID := deps.TenantIDFromContext(ctx)
	fail := func(accountRef string, err error, reason string) (VerifyResult, error) {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Verify, false, accountRef, tenantID, tokenID, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return VerifyResult{Outcome: OutcomeVerifyFailed, AccountRef: accountRef, TenantID: tenantID, Reason: reason}, err
	}

	if tokenID == "" || answer == "" || newPassword == "" {
		return fail("", deps.Errors.Invalid, deps.FailureReason(deps.Errors.Invalid))
	}
	if err := deps.CheckPasswordPolicy(newPassword); err != nil {
		return fail("", deps.Errors.PasswordPolicy, deps.FailureReason(deps.Errors.PasswordPolicy))
	}
	if !deps.WellFormedTokenID(tokenID) {
		return fail("", deps.Errors.NotFound, deps.FailureReason(deps.Errors.NotFound))
	}

	token, err := deps.ConsumeToken(ctx, tenantID, tokenID, answer)
	if err != nil {
		mapped := deps.MapStoreError(err)
		reason := deps.FailureReason(mapped)
		switch {
		case errors.Is(mapped, deps.Errors.Expired):
			deps.MetricInc(deps.Metrics.Expired)
		case errors.Is(mapped, deps.Errors.AlreadyUsed):
			deps.MetricInc(deps.Metrics.Replay)
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Replay, false, token.AccountRef, tenantID, tokenID, mapped, nil)
			return VerifyResult{Outcome: OutcomeVerifyFailed, AccountRef: token.AccountRef, TenantID: tenantID, Reason: reason}, mapped
		case errors.Is(mapped, deps.Errors.WrongAnswer):
			deps.MetricInc(deps.Metrics.WrongAnswer)
		case errors.Is(mapped, deps.Errors.TooManyAttempts):
			deps.MetricInc(deps.Metrics.AttemptsExceeded)
		case errors.Is(mapped, deps.Errors.NotFound):
		default:
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Verify, false, "", tenantID, tokenID, mapped, func() map[string]string {
				return map[string]string{
					"reason": "store_unavailable",
				}
			})
			return VerifyResult{}, mapped
		}
		return fail(token.AccountRef, mapped, reason)
	}

	// The token is burned. The password write must not be cut short by the
	// caller going away, since retrying would need a fresh token.
	setCtx := context.WithoutCancel(ctx)
	if deps.SetPasswordTimeout > 0 {
		var cancel context.CancelFunc
		setCtx, cancel = context.WithTimeout(setCtx, deps.SetPasswordTimeout)
		defer cancel()
	}

	effectiveTenant := tenantID
	if effectiveTenant == "" {
		effectiveTenant = token.TenantID
	}

	if err := deps.SetPassword(setCtx, token.AccountRef, effectiveTenant, newPassword); err != nil {
		deps.MetricInc(deps.Metrics.PasswordUpdateFailure)
		deps.Logf("goReset: password update for account %s failed after token consume: %v", token.AccountRef, err)
		deps.EmitAudit(ctx, deps.Events.PasswordUpdateFailed, false, token.AccountRef, effectiveTenant, tokenID, err, nil)
		return VerifyResult{
			Outcome:    OutcomePasswordUpdateFailed,
			AccountRef: token.AccountRef,
			TenantID:   effectiveTenant,
			Reason:     deps.FailureReason(deps.Errors.PasswordUpdateFailed),
		}, errors.Join(deps.Errors.PasswordUpdateFailed, err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Verify, true, token.AccountRef, effectiveTenant, tokenID, nil, nil)
	return VerifyResult{Outcome: OutcomeVerified, AccountRef: token.AccountRef, TenantID: effectiveTenant}, nil
}

func normalizeVerifyDeps(deps *VerifyDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TenantIDFromContext == nil {
		deps.TenantIDFromContext = func(context.Context) string { return "" }
	}
	if deps.WellFormedTokenID == nil {
		deps.WellFormedTokenID = func(string) bool { return true }
	}
	if deps.CheckPasswordPolicy == nil {
		deps.CheckPasswordPolicy = func(string) error { return nil }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.Logf == nil {
		deps.Logf = func(string, ...any) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.FailureReason == nil {
		deps.FailureReason = func(err error) string {
			if err == nil {
				return ""
			}
			return err.Error()
		}
	}
}
