package otel

import (
	"context"
	"errors"
	"fmt"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goReset.MetricsSnapshot
	AuditDropped() uint64
}

// series is one counter observation with its precomputed attribute set.
type series struct {
	id   goReset.MetricID
	opts []metric.ObserveOption
}

type family struct {
	instrument metric.Int64ObservableCounter
	series     []series
}

type latency struct {
	id      goReset.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	le      [8][]metric.ObserveOption
}

// OTelExporter mirrors the Prometheus families onto an OpenTelemetry Meter:
// one observable counter per family with the outcome, result or reason
// carried as an attribute.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	families     []family
	latencies    []latency
	auditDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *goReset.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{source: source}
	observables := make([]metric.Observable, 0, len(internaldefs.Families)+2*len(internaldefs.HistogramDefs)+1)

	for _, def := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		fam := family{instrument: ins, series: make([]series, 0, len(def.Series))}
		for _, s := range def.Series {
			var opts []metric.ObserveOption
			if def.Label != "" {
				opts = append(opts, metric.WithAttributes(attribute.String(def.Label, s.Value)))
			}
			fam.series = append(fam.series, series{id: s.ID, opts: opts})
		}
		exporter.families = append(exporter.families, fam)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per le bound."))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("create count gauge %s: %w", def.Name, err)
		}
		l := latency{id: def.ID, buckets: buckets, count: count}
		for i, le := range internaldefs.HistogramBounds {
			l.le[i] = []metric.ObserveOption{metric.WithAttributes(attribute.String("le", le))}
		}
		exporter.latencies = append(exporter.latencies, l)
		observables = append(observables, buckets, count)
	}

	auditDropped, err := meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	exporter.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, fam := range e.families {
		for _, s := range fam.series {
			observer.ObserveInt64(fam.instrument, int64(snapshot.Counters[s.id]), s.opts...)
		}
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i := range cumulative {
			observer.ObserveInt64(l.buckets, int64(cumulative[i]), l.le[i]...)
		}
		observer.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
