package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Verify.ConsumeToken != nil && s.deps.Issue.CreateToken != nil
}

func (s Service) Issue(ctx context.Context, email string) (IssueResult, error) {
	return RunIssue(ctx, email, s.deps.Issue)
}

func (s Service) Verify(ctx context.Context, tokenID, answer, newPassword string) (VerifyResult, error) {
	return RunVerify(ctx, tokenID, answer, newPassword, s.deps.Verify)
}

func (s Service) Sweep(ctx context.Context) (int, error) {
	return RunSweep(ctx, s.deps.Sweep)
}

func (s Service) Lookup(ctx context.Context, tokenID string) (TokenInfo, error) {
	return RunLookup(ctx, tokenID, s.deps.Lookup)
}
