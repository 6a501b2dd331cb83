package goReset

import internalmetrics "github.com/MrEthical07/goReset/internal/metrics"

// MetricID identifies one engine counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricIssueRequest           = internalmetrics.MetricIssueRequest
	MetricIssueSuccess           = internalmetrics.MetricIssueSuccess
	MetricIssueRateLimited       = internalmetrics.MetricIssueRateLimited
	MetricIssueDecoy             = internalmetrics.MetricIssueDecoy
	MetricIssueFailure           = internalmetrics.MetricIssueFailure
	MetricTokenConflict          = internalmetrics.MetricTokenConflict
	MetricNotifySuccess          = internalmetrics.MetricNotifySuccess
	MetricNotifyFailure          = internalmetrics.MetricNotifyFailure
	MetricVerifySuccess          = internalmetrics.MetricVerifySuccess
	MetricVerifyFailure          = internalmetrics.MetricVerifyFailure
	MetricVerifyExpired          = internalmetrics.MetricVerifyExpired
	MetricVerifyReplay           = internalmetrics.MetricVerifyReplay
	MetricVerifyWrongAnswer      = internalmetrics.MetricVerifyWrongAnswer
	MetricVerifyAttemptsExceeded = internalmetrics.MetricVerifyAttemptsExceeded
	MetricPasswordUpdateFailure  = internalmetrics.MetricPasswordUpdateFailure
	MetricSweepRun               = internalmetrics.MetricSweepRun
	MetricSweepRemoved           = internalmetrics.MetricSweepRemoved
	MetricSweepFailure           = internalmetrics.MetricSweepFailure
	MetricVerifyLatency          = internalmetrics.MetricVerifyLatency
)

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = internalmetrics.Snapshot

// Metrics is the engine's in-process counter set.
type Metrics = internalmetrics.Metrics

// NewMetrics returns a counter set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
