package goReset

import (
	"context"
	"time"

	"github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/rate"
	"github.com/MrEthical07/goReset/internal/stores"
)

// Outcome is the terminal state of one Issue or Verify call.
type Outcome = flows.Outcome

const (
	// OutcomeRejected covers invalid input and backend failures; the
	// accompanying error says which.
	OutcomeRejected             = flows.OutcomeRejected
	OutcomeIssued               = flows.OutcomeIssued
	OutcomeRateLimited          = flows.OutcomeRateLimited
	OutcomeVerified             = flows.OutcomeVerified
	OutcomeVerifyFailed         = flows.OutcomeVerifyFailed
	OutcomePasswordUpdateFailed = flows.OutcomePasswordUpdateFailed
)

// TokenState is the lifecycle state reported by Engine.Lookup.
type TokenState = flows.TokenState

const (
	TokenPending  = flows.TokenPending
	TokenConsumed = flows.TokenConsumed
	TokenExpired  = flows.TokenExpired
)

// TokenInfo is the read-only view returned by Engine.Lookup.
type TokenInfo = flows.TokenInfo

// Account is what an AccountProvider resolves an email to.
type Account struct {
	Ref string
	// TenantID, when set, must equal the request tenant; otherwise Issue
	// treats the account as unknown.
	TenantID string
	Email    string
}

// AccountProvider is the host application's account subsystem. Only
// lookup by email and the password write are needed.
//
// ResolveAccount must return an error matching ErrAccountNotFound for
// unknown emails. SetPassword receives the tenant through the context; see
// TenantIDFromContext.
type AccountProvider interface {
	ResolveAccount(ctx context.Context, email string) (Account, error)
	SetPassword(ctx context.Context, accountRef, newPassword string) error
}

// Notification is handed to the Notifier after a token is committed.
type Notification struct {
	Contact     string
	AccountRef  string
	TenantID    string
	TokenID     string
	ChallengeID int
	DisplayRef  string
	ResetURL    string
	ExpiresAt   time.Time
}

// Notifier delivers reset links. It runs off the request path and its
// failure never invalidates the token.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// IssueResult is returned by Engine.Issue.
//
// Delivery yields one value when the notifier finishes: nil, or an error
// matching ErrNotificationFailed. Callers may ignore it.
type IssueResult struct {
	Outcome     Outcome
	TokenID     string
	ChallengeID int
	DisplayRef  string
	ExpiresAt   time.Time
	Delivery    <-chan error
}

// VerifyResult is returned by Engine.Verify. Reason is a stable code from
// FailureReason when Outcome is not OutcomeVerified.
type VerifyResult struct {
	Outcome    Outcome
	AccountRef string
	Reason     string
}

// TokenStore is implemented by every reset token backend.
type TokenStore = stores.TokenStore

// TokenRecord is one persisted reset token.
type TokenRecord = stores.TokenRecord

// AnswerMatcher checks a supplied captcha answer against a challenge id.
// *catalog.Catalog implements it.
type AnswerMatcher = stores.AnswerMatcher

// RateCounter is the keyed fixed-window counter behind the issue limiter.
type RateCounter = rate.Counter
