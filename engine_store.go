package goReset

import (
	"context"
	"errors"

	"github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/stores"
)

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, stores.ErrTokenNotFound):
		return ErrTokenNotFound
	case errors.Is(err, stores.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, stores.ErrTokenAlreadyUsed):
		return ErrTokenAlreadyUsed
	case errors.Is(err, stores.ErrWrongAnswer):
		return ErrWrongAnswer
	case errors.Is(err, stores.ErrTooManyAttempts):
		return ErrTooManyAttempts
	case errors.Is(err, stores.ErrChallengeMismatch):
		// The catalog no longer knows the bound challenge; the token can
		// never verify, so it is reported as absent.
		return ErrTokenNotFound
	default:
		return ErrResetUnavailable
	}
}

func isTokenConflict(err error) bool {
	return errors.Is(err, stores.ErrTokenConflict)
}

func toFlowToken(rec TokenRecord) flows.Token {
	return flows.Token{
		TokenID:           rec.TokenID,
		TenantID:          rec.TenantID,
		AccountRef:        rec.AccountRef,
		ChallengeID:       rec.ChallengeID,
		IssuedAt:          rec.IssuedAt,
		ExpiresAt:         rec.ExpiresAt,
		Consumed:          rec.Consumed,
		AttemptsRemaining: int(rec.AttemptsRemaining),
	}
}
