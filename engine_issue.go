package goReset

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/MrEthical07/goReset/internal"
	internalflows "github.com/MrEthical07/goReset/internal/flows"
)

// Issue starts a password reset for email.
//
// The issuance limiter runs before a challenge is picked or a token is
// stored; a rejection returns OutcomeRateLimited with ErrRateLimited. On
// success the notifier is started asynchronously and its result arrives on
// IssueResult.Delivery. Cancelling ctx after the token is stored does not
// revoke it.
//
// With Reset.EnumerationSafe, an unknown email yields an indistinguishable
// OutcomeIssued result whose token does not exist.
func (e *Engine) Issue(ctx context.Context, email string) (IssueResult, error) {
	if !e.ready() {
		return IssueResult{}, ErrEngineNotReady
	}
	res, err := e.flows.Issue(ctx, email)
	return IssueResult{
		Outcome:     res.Outcome,
		TokenID:     res.TokenID,
		ChallengeID: res.ChallengeID,
		DisplayRef:  res.DisplayRef,
		ExpiresAt:   res.ExpiresAt,
		Delivery:    res.Delivery,
	}, err
}

func (e *Engine) issueFlowDeps() internalflows.IssueDeps {
	cfg := e.config

	return internalflows.IssueDeps{
		TTL:             cfg.Reset.TokenTTL,
		MaxAttempts:     cfg.Reset.MaxAttempts,
		CreateRetries:   cfg.Reset.CreateRetries,
		EnumerationSafe: cfg.Reset.EnumerationSafe,
		NotifyTimeout:   cfg.Reset.NotifyTimeout,

		TenantIDFromContext: tenantIDFromContext,
		ClientIPFromContext: clientIPFromContext,
		Now:                 e.now,

		NormalizeEmail: internal.NormalizeEmail,
		HashIdentifier: internal.HashIdentifier,

		ResolveAccount: func(ctx context.Context, email string) (internalflows.Account, error) {
			acct, err := e.accounts.ResolveAccount(ctx, email)
			if err != nil {
				return internalflows.Account{}, err
			}
			contact := acct.Email
			if contact == "" {
				contact = email
			}
			return internalflows.Account{Ref: acct.Ref, TenantID: acct.TenantID, Contact: contact}, nil
		},
		IsAccountNotFound: func(err error) bool {
			return errors.Is(err, ErrAccountNotFound)
		},

		AllowIssue:      e.limiter.Allow,
		MapLimiterError: mapLimiterError,

		PickChallenge: func(ctx context.Context) (internalflows.Challenge, error) {
			ch, err := e.catalog.PickContext(ctx)
			if err != nil {
				return internalflows.Challenge{}, err
			}
			return internalflows.Challenge{ID: ch.ID, DisplayRef: ch.DisplayRef}, nil
		},
		CreateToken: func(ctx context.Context, tenantID, accountRef string, challengeID int, ttl time.Duration, maxAttempts int) (internalflows.Token, error) {
			rec, err := e.store.Create(ctx, tenantID, accountRef, challengeID, ttl, maxAttempts)
			if err != nil {
				return internalflows.Token{}, err
			}
			return toFlowToken(rec), nil
		},
		IsTokenConflict: isTokenConflict,
		MapStoreError:   mapStoreError,

		NewDecoyTokenID: func() (string, error) {
			id, err := internal.NewTokenID()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
		SleepEnumerationDelay: e.sleepEnumerationDelay,

		Dispatch: e.dispatch,
		Notify: func(ctx context.Context, d internalflows.Delivery) error {
			return e.notifier.Send(ctx, Notification{
				Contact:     d.Contact,
				AccountRef:  d.AccountRef,
				TenantID:    d.TenantID,
				TokenID:     d.TokenID,
				ChallengeID: d.ChallengeID,
				DisplayRef:  d.DisplayRef,
				ResetURL:    resetURL(cfg.Reset.LinkBaseURL, d.TokenID),
				ExpiresAt:   d.ExpiresAt,
			})
		},
		Logf: logf,

		MetricInc: e.metricInc,
		EmitAudit: e.emitAudit,

		Metrics: internalflows.IssueMetrics{
			Request:       int(MetricIssueRequest),
			Success:       int(MetricIssueSuccess),
			RateLimited:   int(MetricIssueRateLimited),
			Decoy:         int(MetricIssueDecoy),
			Failure:       int(MetricIssueFailure),
			TokenConflict: int(MetricTokenConflict),
			NotifySuccess: int(MetricNotifySuccess),
			NotifyFailure: int(MetricNotifyFailure),
		},
		Events: internalflows.IssueEvents{
			Issue:        auditEventResetIssue,
			RateLimited:  auditEventResetRateLimited,
			NotifySent:   auditEventResetNotifySent,
			NotifyFailed: auditEventResetNotifyFailed,
		},
		Errors: internalflows.IssueErrors{
			EngineNotReady:     ErrEngineNotReady,
			Invalid:            ErrResetInvalid,
			RateLimited:        ErrRateLimited,
			AccountNotFound:    ErrAccountNotFound,
			Unavailable:        ErrResetUnavailable,
			NotificationFailed: ErrNotificationFailed,
		},
	}
}

func (e *Engine) sleepEnumerationDelay(ctx context.Context) error {
	d := internal.Jitter(e.config.Reset.EnumerationDelayMin, e.config.Reset.EnumerationDelayMax)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resetURL appends key=<token> to base, keeping any query it already has.
func resetURL(base, tokenID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?key=" + url.QueryEscape(tokenID)
	}
	q := u.Query()
	q.Set("key", tokenID)
	u.RawQuery = q.Encode()
	return u.String()
}
