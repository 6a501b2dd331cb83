// Package httpapi exposes a goReset.Engine over HTTP with chi.
//
// Routes:
//
//	POST /password-reset/request  {"email"}
//	POST /password-reset/confirm  {"key","captcha","password"}
//	GET  /password-reset/{key}
//	GET  /health
//
// Errors are JSON objects {"error": code, "message": text} where code is
// goReset.FailureReason of the engine error.
package httpapi
