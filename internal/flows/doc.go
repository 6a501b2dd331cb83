// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunIssue, RunVerify, RunSweep, RunLookup) accepts a typed
// dependency struct and returns results without side-effects beyond those
// dependencies. The Engine type stays thin and the flows are tested with fake
// dependencies.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the account provider, rate limiter,
// challenge catalog, token store, notifier, audit dispatcher, and metrics.
// They do NOT own any of these resources. Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goReset (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
//   - Hold a lock while the notifier runs.
package flows
