// Package prometheus renders goReset engine metrics in the Prometheus text
// exposition format.
//
// Counters are grouped into labeled families such as
// goreset_issue_total{outcome="rate_limited"} and
// goreset_verify_rejections_total{reason="wrong_answer"}. Nothing is
// registered globally; mount Handler wherever /metrics should live.
package prometheus
