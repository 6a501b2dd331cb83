package goReset

import "github.com/MrEthical07/goReset/internal/security"

// SecurityReport describes which protections the engine runs with. resetd
// logs it at startup.
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		TokenBackend:       e.backend,
		TokenTTL:           e.config.Reset.TokenTTL,
		MaxAttempts:        e.config.Reset.MaxAttempts,
		MaxIssuesPerWindow: e.config.RateLimit.MaxIssuesPerWindow,
		RateWindow:         e.config.RateLimit.Window,
		EnableIPThrottle:   e.config.RateLimit.EnableIPThrottle,
		MaxIssuesPerIP:     e.config.RateLimit.MaxIssuesPerIP,
		EnumerationSafe:    e.config.Reset.EnumerationSafe,
		PasswordMinLength:  e.config.Password.MinLength,
		AuditEnabled:       e.config.Audit.Enabled,
		MetricsEnabled:     e.config.Metrics.Enabled,
		MultiTenant:        e.config.MultiTenant.Enabled,
	})
}
