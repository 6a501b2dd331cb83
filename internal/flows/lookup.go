package flows

import (
	"context"
	"time"
)

// TokenState is the externally visible lifecycle state of a token.
type TokenState string

const (
	TokenPending  TokenState = "pending"
	TokenConsumed TokenState = "consumed"
	TokenExpired  TokenState = "expired"
)

// TokenInfo is a read-only view of a token, enough to re-render its captcha.
type TokenInfo struct {
	State             TokenState
	ChallengeID       int
	DisplayRef        string
	ExpiresAt         time.Time
	AttemptsRemaining int
}

type LookupErrors struct {
	EngineNotReady error
	Invalid        error
	NotFound       error
}

type LookupDeps struct {
	TenantIDFromContext func(context.Context) string
	Now                 func() time.Time
	WellFormedTokenID   func(string) bool

	GetToken          func(context.Context, string, string) (Token, error)
	MapStoreError     func(error) error
	ResolveDisplayRef func(context.Context, int) (string, error)

	Errors LookupErrors
}

func RunLookup(ctx context.Context, tokenID string, deps LookupDeps) (TokenInfo, error) {
	normalizeLookupDeps(&deps)
	if deps.GetToken == nil {
		return TokenInfo{}, deps.Errors.EngineNotReady
	}
	if tokenID == "" {
		return TokenInfo{}, deps.Errors.Invalid
	}
	if !deps.WellFormedTokenID(tokenID) {
		return TokenInfo{}, deps.Errors.NotFound
	}

	token, err := deps.GetToken(ctx, deps.TenantIDFromContext(ctx), tokenID)
	if err != nil {
		return TokenInfo{}, deps.MapStoreError(err)
	}

	info := TokenInfo{
		State:             TokenPending,
		ChallengeID:       token.ChallengeID,
		ExpiresAt:         token.ExpiresAt,
		AttemptsRemaining: token.AttemptsRemaining,
	}
	switch {
	case deps.Now().After(token.ExpiresAt):
		info.State = TokenExpired
	case token.Consumed:
		info.State = TokenConsumed
	}

	if info.State == TokenPending && deps.ResolveDisplayRef != nil {
		ref, err := deps.ResolveDisplayRef(ctx, token.ChallengeID)
		if err != nil {
			return TokenInfo{}, deps.MapStoreError(err)
		}
		info.DisplayRef = ref
	}
	return info, nil
}

func normalizeLookupDeps(deps *LookupDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.TenantIDFromContext == nil {
		deps.TenantIDFromContext = func(context.Context) string { return "" }
	}
	if deps.WellFormedTokenID == nil {
		deps.WellFormedTokenID = func(string) bool { return true }
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
}
