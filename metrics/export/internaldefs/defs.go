package internaldefs

import (
	goReset "github.com/MrEthical07/goReset"
)

// Series binds one engine counter to a label value within its family.
type Series struct {
	ID    goReset.MetricID
	Value string
}

// Family is one exported counter. Label is empty for single-series
// families; otherwise every series carries Label=Value.
type Family struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

type HistogramDef struct {
	ID   goReset.MetricID
	Name string
	Help string
}

// Families lists every exported counter family in render order. Verify
// rejection reasons reuse the FailureReason codes so dashboards can join
// them with audit events.
var Families = []Family{
	{
		Name: "goreset_issue_requests_total",
		Help: "Password reset issue requests received.",
		Series: []Series{
			{ID: goReset.MetricIssueRequest},
		},
	},
	{
		Name:  "goreset_issue_total",
		Help:  "Issue requests by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: goReset.MetricIssueSuccess, Value: "issued"},
			{ID: goReset.MetricIssueDecoy, Value: "decoy"},
			{ID: goReset.MetricIssueRateLimited, Value: "rate_limited"},
			{ID: goReset.MetricIssueFailure, Value: "failed"},
		},
	},
	{
		Name: "goreset_token_conflicts_total",
		Help: "Token id collisions retried during create.",
		Series: []Series{
			{ID: goReset.MetricTokenConflict},
		},
	},
	{
		Name:  "goreset_notifications_total",
		Help:  "Reset notifications by delivery result.",
		Label: "result",
		Series: []Series{
			{ID: goReset.MetricNotifySuccess, Value: "sent"},
			{ID: goReset.MetricNotifyFailure, Value: "failed"},
		},
	},
	{
		Name:  "goreset_verify_total",
		Help:  "Reset confirmations by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: goReset.MetricVerifySuccess, Value: "verified"},
			{ID: goReset.MetricVerifyFailure, Value: "failed"},
			{ID: goReset.MetricPasswordUpdateFailure, Value: "password_update_failed"},
		},
	},
	{
		Name:  "goreset_verify_rejections_total",
		Help:  "Failed confirmations by token verdict.",
		Label: "reason",
		Series: []Series{
			{ID: goReset.MetricVerifyExpired, Value: "token_expired"},
			{ID: goReset.MetricVerifyReplay, Value: "token_already_used"},
			{ID: goReset.MetricVerifyWrongAnswer, Value: "wrong_answer"},
			{ID: goReset.MetricVerifyAttemptsExceeded, Value: "too_many_attempts"},
		},
	},
	{
		Name:  "goreset_sweep_runs_total",
		Help:  "Expiry sweep runs by result.",
		Label: "result",
		Series: []Series{
			{ID: goReset.MetricSweepRun, Value: "ran"},
			{ID: goReset.MetricSweepFailure, Value: "failed"},
		},
	},
	{
		Name: "goreset_sweep_removed_total",
		Help: "Expired tokens removed by the sweep.",
		Series: []Series{
			{ID: goReset.MetricSweepRemoved},
		},
	},
}

var HistogramDefs = []HistogramDef{
	{ID: goReset.MetricVerifyLatency, Name: "goreset_verify_latency_seconds", Help: "Reset confirmation latency."},
}

// AuditDroppedName is rendered from Engine.AuditDropped rather than a
// snapshot counter.
const (
	AuditDroppedName = "goreset_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// HistogramBounds are the le label values, matching the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
