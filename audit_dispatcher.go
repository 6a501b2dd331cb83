package goReset

import (
	"log"
	"sync/atomic"

	internalaudit "github.com/MrEthical07/goReset/internal/audit"
)

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *internalaudit.Dispatcher {
	var drops atomic.Uint64
	return internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
		OnDrop: func(event AuditEvent) {
			// first drop, then every 1000th
			if n := drops.Add(1); n == 1 || n%1000 == 0 {
				log.Printf("goReset: audit buffer full, %d events dropped (latest %s)", n, event.EventType)
			}
		},
	}, sink)
}
