package security

import "time"

// Report summarizes the protections a running engine has switched on.
type Report struct {
	TokenBackend       string
	TokenTTL           time.Duration
	AttemptCapActive   bool
	MaxAttempts        int
	MaxIssuesPerWindow int
	RateWindow         time.Duration
	IPThrottleActive   bool
	MaxIssuesPerIP     int
	EnumerationSafe    bool
	PasswordMinLength  int
	AuditEnabled       bool
	MetricsEnabled     bool
	TenantScoped       bool
	Warnings           []string
}

type ReportInput struct {
	TokenBackend       string
	TokenTTL           time.Duration
	MaxAttempts        int
	MaxIssuesPerWindow int
	RateWindow         time.Duration
	EnableIPThrottle   bool
	MaxIssuesPerIP     int
	EnumerationSafe    bool
	PasswordMinLength  int
	AuditEnabled       bool
	MetricsEnabled     bool
	MultiTenant        bool
}

// BuildReport derives a Report from input. Warnings name settings that are
// legal but weaker than a public deployment should run with.
func BuildReport(input ReportInput) Report {
	r := Report{
		TokenBackend:       input.TokenBackend,
		TokenTTL:           input.TokenTTL,
		AttemptCapActive:   input.MaxAttempts > 0,
		MaxAttempts:        input.MaxAttempts,
		MaxIssuesPerWindow: input.MaxIssuesPerWindow,
		RateWindow:         input.RateWindow,
		IPThrottleActive:   input.EnableIPThrottle && input.MaxIssuesPerIP > 0,
		MaxIssuesPerIP:     input.MaxIssuesPerIP,
		EnumerationSafe:    input.EnumerationSafe,
		PasswordMinLength:  input.PasswordMinLength,
		AuditEnabled:       input.AuditEnabled,
		MetricsEnabled:     input.MetricsEnabled,
		TenantScoped:       input.MultiTenant,
	}

	if !r.AttemptCapActive {
		r.Warnings = append(r.Warnings, "captcha attempts are uncapped")
	}
	if input.TokenTTL > 24*time.Hour {
		r.Warnings = append(r.Warnings, "token TTL exceeds 24h")
	}
	if !input.EnumerationSafe {
		r.Warnings = append(r.Warnings, "unknown emails are reported to callers")
	}
	if input.TokenBackend == "memory" {
		r.Warnings = append(r.Warnings, "tokens are process-local")
	}
	return r
}
