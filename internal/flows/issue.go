package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// IssueResult is returned by RunIssue. Delivery yields exactly one value once
// the notifier finishes: nil on success, or an error wrapping the
// NotificationFailed sentinel. It never blocks Issue itself.
type IssueResult struct {
	Outcome     Outcome
	TokenID     string
	AccountRef  string
	TenantID    string
	ChallengeID int
	DisplayRef  string
	ExpiresAt   time.Time
	Delivery    <-chan error
	Decoy       bool
}

type IssueMetrics struct {
	Request       int
	Success       int
	RateLimited   int
	Decoy         int
	Failure       int
	TokenConflict int
	NotifySuccess int
	NotifyFailure int
}

type IssueEvents struct {
	Issue        string
	RateLimited  string
	NotifySent   string
	NotifyFailed string
}

type IssueErrors struct {
	EngineNotReady     error
	Invalid            error
	RateLimited        error
	AccountNotFound    error
	Unavailable        error
	NotificationFailed error
}

type IssueDeps struct {
	TTL             time.Duration
	MaxAttempts     int
	CreateRetries   int
	EnumerationSafe bool
	NotifyTimeout   time.Duration

	TenantIDFromContext func(context.Context) string
	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	NormalizeEmail func(string) string
	HashIdentifier func(string) string

	ResolveAccount    func(context.Context, string) (Account, error)
	IsAccountNotFound func(error) bool

	AllowIssue      func(context.Context, string, string, string) error
	MapLimiterError func(error) error

	PickChallenge   func(context.Context) (Challenge, error)
	CreateToken     func(context.Context, string, string, int, time.Duration, int) (Token, error)
	IsTokenConflict func(error) bool
	MapStoreError   func(error) error

	NewDecoyTokenID       func() (string, error)
	SleepEnumerationDelay func(context.Context) error

	// Dispatch runs fn on a tracked goroutine.
	Dispatch func(fn func())
	Notify   func(context.Context, Delivery) error
	Logf     func(string, ...any)

	MetricInc func(int)
	EmitAudit func(context.Context, string, bool, string, string, string, error, func() map[string]string)

	Metrics IssueMetrics
	Events  IssueEvents
	Errors  IssueErrors
}

func RunIssue(ctx context.Context, email string, deps IssueDeps) (IssueResult, error) {
	normalizeIssueDeps(&deps)

	if deps.ResolveAccount == nil || deps.AllowIssue == nil || deps.PickChallenge == nil || deps.CreateToken == nil || deps.Notify == nil {
		return IssueResult{}, deps.Errors.EngineNotReady
	}

	deps.MetricInc(deps.Metrics.Request)
	tenantID := deps.TenantIDFromContext(ctx)

	email = deps.NormalizeEmail(email)
	if !plausibleEmail(email) {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Issue, false, "", tenantID, "", deps.Errors.Invalid, func() map[string]string {
			return map[string]string{
				"reason": "invalid_email",
			}
		})
		return IssueResult{}, deps.Errors.Invalid
	}

	account, err := deps.ResolveAccount(ctx, email)
	unknown := false
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return IssueResult{}, err
		}
		if !deps.IsAccountNotFound(err) {
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.Issue, false, "", tenantID, "", deps.Errors.Unavailable, func() map[string]string {
				return map[string]string{
					"reason": "account_lookup_failed",
				}
			})
			return IssueResult{}, deps.Errors.Unavailable
		}
		unknown = true
	}

	// Tokens are keyed by the request tenant because that is all Verify and
	// Lookup see. An account owned by another tenant does not exist here.
	if !unknown && !accountInTenant(account.TenantID, tenantID) {
		account = Account{}
		unknown = true
	}
	effectiveTenant := tenantID

	limitKey := account.Ref
	if unknown {
		limitKey = "e:" + deps.HashIdentifier(email)
	}
	if err := deps.AllowIssue(ctx, effectiveTenant, limitKey, deps.ClientIPFromContext(ctx)); err != nil {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, account.Ref, effectiveTenant, "", mapped, nil)
			return IssueResult{Outcome: OutcomeRateLimited}, mapped
		}
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Issue, false, account.Ref, effectiveTenant, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "limiter_unavailable",
			}
		})
		return IssueResult{}, mapped
	}

	if unknown {
		return runDecoyIssue(ctx, effectiveTenant, deps)
	}

	challenge, err := deps.PickChallenge(ctx)
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Issue, false, account.Ref, effectiveTenant, "", deps.Errors.Unavailable, func() map[string]string {
			return map[string]string{
				"reason": "challenge_pick_failed",
			}
		})
		return IssueResult{}, deps.Errors.Unavailable
	}

	var token Token
	for attempt := 0; ; attempt++ {
		token, err = deps.CreateToken(ctx, effectiveTenant, account.Ref, challenge.ID, deps.TTL, deps.MaxAttempts)
		if err == nil {
			break
		}
		if deps.IsTokenConflict(err) && attempt < deps.CreateRetries {
			deps.MetricInc(deps.Metrics.TokenConflict)
			continue
		}
		mapped := deps.MapStoreError(err)
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Issue, false, account.Ref, effectiveTenant, "", mapped, func() map[string]string {
			return map[string]string{
				"reason": "token_create_failed",
			}
		})
		return IssueResult{}, mapped
	}

	// The token is committed. Nothing past this point may fail the request.
	delivery := make(chan error, 1)
	notification := Delivery{
		Contact:     account.Contact,
		AccountRef:  account.Ref,
		TenantID:    effectiveTenant,
		TokenID:     token.TokenID,
		ChallengeID: token.ChallengeID,
		DisplayRef:  challenge.DisplayRef,
		ExpiresAt:   token.ExpiresAt,
	}
	notifyCtx := context.WithoutCancel(ctx)
	deps.Dispatch(func() {
		delivery <- deliver(notifyCtx, notification, deps)
	})

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Issue, true, account.Ref, effectiveTenant, token.TokenID, nil, func() map[string]string {
		return map[string]string{
			"challenge_id": strconv.Itoa(challenge.ID),
		}
	})

	return IssueResult{
		Outcome:     OutcomeIssued,
		TokenID:     token.TokenID,
		AccountRef:  account.Ref,
		TenantID:    effectiveTenant,
		ChallengeID: token.ChallengeID,
		DisplayRef:  challenge.DisplayRef,
		ExpiresAt:   token.ExpiresAt,
		Delivery:    delivery,
	}, nil
}

func deliver(ctx context.Context, notification Delivery, deps IssueDeps) error {
	if deps.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.NotifyTimeout)
		defer cancel()
	}

	err := deps.Notify(ctx, notification)
	if err == nil {
		deps.MetricInc(deps.Metrics.NotifySuccess)
		deps.EmitAudit(ctx, deps.Events.NotifySent, true, notification.AccountRef, notification.TenantID, notification.TokenID, nil, nil)
		return nil
	}

	warning := errors.Join(deps.Errors.NotificationFailed, err)
	deps.MetricInc(deps.Metrics.NotifyFailure)
	deps.Logf("goReset: reset notification for account %s failed: %v", notification.AccountRef, err)
	deps.EmitAudit(ctx, deps.Events.NotifyFailed, false, notification.AccountRef, notification.TenantID, notification.TokenID, warning, nil)
	return warning
}

func runDecoyIssue(ctx context.Context, tenantID string, deps IssueDeps) (IssueResult, error) {
	if !deps.EnumerationSafe {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Issue, false, "", tenantID, "", deps.Errors.AccountNotFound, nil)
		return IssueResult{}, deps.Errors.AccountNotFound
	}

	if err := deps.SleepEnumerationDelay(ctx); err != nil {
		return IssueResult{}, err
	}
	tokenID, err := deps.NewDecoyTokenID()
	if err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		return IssueResult{}, deps.Errors.Unavailable
	}

	deps.MetricInc(deps.Metrics.Decoy)
	deps.EmitAudit(ctx, deps.Events.Issue, true, "", tenantID, "", nil, func() map[string]string {
		return map[string]string{
			"enumeration_safe": "true",
		}
	})

	delivery := make(chan error, 1)
	delivery <- nil
	return IssueResult{
		Outcome:   OutcomeIssued,
		TokenID:   tokenID,
		TenantID:  tenantID,
		ExpiresAt: deps.Now().Add(deps.TTL),
		Delivery:  delivery,
		Decoy:     true,
	}, nil
}

func plausibleEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func normalizeIssueDeps(deps *IssueDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TenantIDFromContext == nil {
		deps.TenantIDFromContext = func(context.Context) string { return "" }
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.NormalizeEmail == nil {
		deps.NormalizeEmail = func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	}
	if deps.HashIdentifier == nil {
		deps.HashIdentifier = func(v string) string { return v }
	}
	if deps.IsAccountNotFound == nil {
		deps.IsAccountNotFound = func(err error) bool { return errors.Is(err, deps.Errors.AccountNotFound) }
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(err error) error { return err }
	}
	if deps.IsTokenConflict == nil {
		deps.IsTokenConflict = func(error) bool { return false }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.NewDecoyTokenID == nil {
		deps.NewDecoyTokenID = func() (string, error) { return "", deps.Errors.Unavailable }
	}
	if deps.SleepEnumerationDelay == nil {
		deps.SleepEnumerationDelay = func(context.Context) error { return nil }
	}
	if deps.Dispatch == nil {
		deps.Dispatch = func(fn func()) { go fn() }
	}
	if deps.Logf == nil {
		deps.Logf = func(string, ...any) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, string, string, error, func() map[string]string) {}
	}
	if deps.CreateRetries < 0 {
		deps.CreateRetries = 0
	}
}
