package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goReset/internal/rate"
)

var (
	ErrIssueRateLimited   = errors.New("reset issuance rate limited")
	ErrLimiterUnavailable = errors.New("reset limiter unavailable")
)

type IssueConfig struct {
	MaxPerWindow     int
	Window           time.Duration
	EnableIPThrottle bool
	MaxPerIP         int
	Prefix           string
}

// IssueLimiter caps reset issuance per account and, optionally, per client IP.
type IssueLimiter struct {
	counter rate.Counter
	config  IssueConfig
}

func NewIssueLimiter(counter rate.Counter, cfg IssueConfig) *IssueLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rrl"
	}
	return &IssueLimiter{
		counter: counter,
		config:  cfg,
	}
}

// Allow records one issuance attempt. It returns ErrIssueRateLimited once
// the account or IP count within the window exceeds its ceiling.
func (l *IssueLimiter) Allow(ctx context.Context, tenantID, accountRef, ip string) error {
	if l == nil || l.counter == nil {
		return nil
	}

	if err := l.enforceFixedWindow(ctx, l.accountKey(tenantID, accountRef), l.config.MaxPerWindow); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, l.ipKey(tenantID, ip), l.config.MaxPerIP); err != nil {
			return err
		}
	}
	return nil
}

func (l *IssueLimiter) enforceFixedWindow(ctx context.Context, key string, ceiling int) error {
	count, err := l.counter.Incr(ctx, key, l.config.Window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count > int64(ceiling) {
		return ErrIssueRateLimited
	}
	return nil
}

func (l *IssueLimiter) accountKey(tenantID, accountRef string) string {
	return l.config.Prefix + ":a:" + normalizeTenantID(tenantID) + ":" + accountRef
}

func (l *IssueLimiter) ipKey(tenantID, ip string) string {
	return l.config.Prefix + ":ip:" + normalizeTenantID(tenantID) + ":" + ip
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}
