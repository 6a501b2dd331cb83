package stores

import (
	"errors"
	"sync"
	"time"
)

type staticAnswers map[int]string

func (a staticAnswers) Match(challengeID int, supplied string) (bool, error) {
	expected, ok := a[challengeID]
	if !ok {
		return false, errors.New("unknown challenge")
	}
	return expected == supplied, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
