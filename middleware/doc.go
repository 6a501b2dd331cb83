// Package middleware adapts net/http requests for goReset.
//
// ResetContext copies the caller's IP and tenant header into the request
// context, where Engine.Issue uses them for per-IP throttling, tenant key
// scoping and audit records.
package middleware
