// Package internal contains helper utilities that are intentionally private to goReset,
// including secure token id generation and identifier hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: viper-backed service configuration for cmd/resetd
//   - flows: pure-function orchestrators for Issue and Verify
//   - limiters: issuance limiter over rate counters
//   - metrics: lock-free counters and latency histograms
//   - rate: keyed fixed-window counters (Redis, memory)
//   - security: security posture report
//   - stores: reset token stores (Redis, Postgres, memory) and migrations
//
// # What this package must NOT do
//
//   - Export types that appear in the public goReset API.
//   - Be imported by any package outside the goReset module.
package internal
