// Package otel publishes goReset engine metrics through an OpenTelemetry
// Meter.
//
// Each counter family is one Int64ObservableCounter whose series are told
// apart by an outcome, result or reason attribute. Verify latency is a pair
// of gauges (_bucket with an le attribute, and _count). A single callback
// reads Engine.MetricsSnapshot; the caller owns the MeterProvider.
package otel
