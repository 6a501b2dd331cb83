// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate primitives.
//
// # Limiters
//
//   - [IssueLimiter]: per-account + optional per-IP fixed-window cap on reset issuance.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # Architecture boundaries
//
// Each limiter owns its own key namespace and error types. Policy thresholds
// come from Config structs supplied at construction time; the backing
// [rate.Counter] is injected so Redis and in-process counters are interchangeable.
//
// # What this package must NOT do
//
//   - Import goReset or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; flow functions decide consequences.
package limiters
