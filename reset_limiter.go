package goReset

import (
	"errors"

	"github.com/MrEthical07/goReset/internal/limiters"
	"github.com/MrEthical07/goReset/internal/rate"
)

func newIssueLimiter(counter rate.Counter, cfg RateLimitConfig) *limiters.IssueLimiter {
	return limiters.NewIssueLimiter(counter, limiters.IssueConfig{
		MaxPerWindow:     cfg.MaxIssuesPerWindow,
		Window:           cfg.Window,
		EnableIPThrottle: cfg.EnableIPThrottle,
		MaxPerIP:         cfg.MaxIssuesPerIP,
		Prefix:           cfg.RedisPrefix,
	})
}

// mapLimiterError fails closed: anything but a clean rejection is reported
// as unavailable rather than allowed through.
func mapLimiterError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrIssueRateLimited):
		return ErrRateLimited
	default:
		return ErrResetUnavailable
	}
}
