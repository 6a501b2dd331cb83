package flows

import "time"

// Outcome is the terminal state of one Issue or Verify call.
type Outcome uint8

const (
	// OutcomeRejected covers invalid input and backend failures. The
	// returned error carries the detail.
	OutcomeRejected Outcome = iota
	OutcomeIssued
	OutcomeRateLimited
	OutcomeVerified
	OutcomeVerifyFailed
	OutcomePasswordUpdateFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIssued:
		return "issued"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeVerified:
		return "verified"
	case OutcomeVerifyFailed:
		return "verify_failed"
	case OutcomePasswordUpdateFailed:
		return "password_update_failed"
	default:
		return "rejected"
	}
}

// Account is the resolved owner of a reset request.
type Account struct {
	Ref      string
	TenantID string
	Contact  string
}

// Challenge is a catalog pick.
type Challenge struct {
	ID         int
	DisplayRef string
}

// Token mirrors the persisted reset token fields the flows need.
type Token struct {
	TokenID           string
	TenantID          string
	AccountRef        string
	ChallengeID       int
	IssuedAt          time.Time
	ExpiresAt         time.Time
	Consumed          bool
	AttemptsRemaining int
}

// Delivery is handed to the notifier once a token is committed.
type Delivery struct {
	Contact     string
	AccountRef  string
	TenantID    string
	TokenID     string
	ChallengeID int
	DisplayRef  string
	ExpiresAt   time.Time
}
