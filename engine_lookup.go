package goReset

import (
	"context"

	"github.com/MrEthical07/goReset/internal"
	internalflows "github.com/MrEthical07/goReset/internal/flows"
)

// Lookup reports the state of tokenID without consuming it or spending an
// attempt. DisplayRef is only filled for pending tokens.
func (e *Engine) Lookup(ctx context.Context, tokenID string) (TokenInfo, error) {
	if !e.ready() {
		return TokenInfo{}, ErrEngineNotReady
	}
	return e.flows.Lookup(ctx, tokenID)
}

func (e *Engine) lookupFlowDeps() internalflows.LookupDeps {
	return internalflows.LookupDeps{
		TenantIDFromContext: tenantIDFromContext,
		Now:                 e.now,
		WellFormedTokenID: func(tokenID string) bool {
			_, err := internal.ParseTokenID(tokenID)
			return err == nil
		},
		GetToken: func(ctx context.Context, tenantID, tokenID string) (internalflows.Token, error) {
			rec, err := e.store.Get(ctx, tenantID, tokenID)
			if err != nil {
				return internalflows.Token{}, err
			}
			return toFlowToken(rec), nil
		},
		MapStoreError:     mapStoreError,
		ResolveDisplayRef: e.catalog.DisplayRef,
		Errors: internalflows.LookupErrors{
			EngineNotReady: ErrEngineNotReady,
			Invalid:        ErrResetInvalid,
			NotFound:       ErrTokenNotFound,
		},
	}
}
