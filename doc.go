// Package goReset issues and verifies captcha-bound password reset tokens.
//
// Issue resolves an account, checks the per-account issuance limit, binds a
// random challenge from the catalog to a fresh 128-bit token and hands the
// link plus captcha to a Notifier in the background. Verify consumes the token
// atomically: of any number of concurrent correct submissions, exactly one
// wins and the account password is written once.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// goReset is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (IssueResult, VerifyResult, TokenInfo, MetricsSnapshot). Flow
// orchestration, token persistence, rate counting and audit dispatch live
// under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores or record encodings in its public API.
//   - Log captcha answers, raw token ids or passwords.
//   - Import any sub-package that re-imports goReset (no import cycles).
//
// # Round-trip budget
//
// A Redis-backed Issue costs at most three round-trips and a rejected one
// costs a single INCR. Verify is one optimistic WATCH transaction, retried
// only under contention.
package goReset
