package rate

import (
	"context"
	"sync"
	"time"
)

const memoryPruneThreshold = 4096

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryCounter is an in-process [Counter] for single-instance deployments
// and tests.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]memoryWindow
	now     func() time.Time
}

// NewMemoryCounter returns an empty MemoryCounter. A nil now uses time.Now.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{
		windows: make(map[string]memoryWindow),
		now:     now,
	}
}

func (c *MemoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.windows) >= memoryPruneThreshold {
		c.pruneLocked(now)
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memoryWindow{resetAt: now.Add(window)}
	}
	w.count++
	c.windows[key] = w

	return w.count, nil
}

func (c *MemoryCounter) pruneLocked(now time.Time) {
	for k, w := range c.windows {
		if !now.Before(w.resetAt) {
			delete(c.windows, k)
		}
	}
}
