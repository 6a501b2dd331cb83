// Package rate provides keyed fixed-window counters used to build issuance
// limits for the reset flow.
//
// # Window semantics
//
// Fixed-window counters: the first hit in a window starts it and sets its TTL;
// later hits only increment. The Redis backend uses INCR + conditional EXPIRE,
// the memory backend a mutex-guarded map with the same behavior.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the goReset module.
package rate
