package goReset

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goReset/catalog"
	internalaudit "github.com/MrEthical07/goReset/internal/audit"
	"github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/limiters"
)

// Engine issues and verifies captcha-bound password reset tokens.
//
// Build one with New().…Build() during initialization; it is safe for
// concurrent use afterwards. Call Close on shutdown to wait for in-flight
// notifications and flush audit events.
type Engine struct {
	config   Config
	flows    flows.Service
	store    TokenStore
	backend  string
	limiter  *limiters.IssueLimiter
	catalog  *catalog.Catalog
	accounts AccountProvider
	notifier Notifier
	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	now      func() time.Time

	notifyWG sync.WaitGroup
	closed   atomic.Bool
}

// Close waits for notifier goroutines (each bounded by NotifyTimeout) and
// drains the audit dispatcher. Issue calls racing with Close are not
// supported.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.notifyWG.Wait()
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id int) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(MetricID(id))
}

func (e *Engine) metricAdd(id int, n uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(MetricID(id), n)
}

func (e *Engine) observeVerifyLatency(d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricVerifyLatency, d)
}

// dispatch runs fn on a goroutine that Close waits for.
func (e *Engine) dispatch(fn func()) {
	e.notifyWG.Add(1)
	go func() {
		defer e.notifyWG.Done()
		fn()
	}()
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

func logf(format string, args ...any) {
	log.Printf(format, args...)
}
