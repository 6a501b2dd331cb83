// Package stores provides reset token persistence with three backends:
// Redis, Postgres (database/sql) and in-process memory.
//
// # Design
//
// Every backend shares the same verdict logic (applyAttempt): expiry is
// checked first, then single-use, then the captcha answer. Only
// ConsumeIfValid mutates a record, and it does so atomically per token id:
//
//   - Redis: WATCH/MULTI optimistic transactions with retry on contention.
//   - Postgres: SELECT ... FOR UPDATE and a conditional UPDATE in one transaction.
//   - Memory: a single mutex.
//
// Records are never deleted on verification. SweepExpired removes records
// whose expiry is older than the caller-supplied cutoff.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for reset tokens.
// It generates token ids but does NOT pick challenges, enforce rate limits,
// or write passwords; those belong to the flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package other than internal.
//   - Log or expose captcha answers.
package stores
