package goReset

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goReset/catalog"
)

// Config is the full engine configuration. Obtain a populated value with
// DefaultConfig and override fields before passing it to Builder.WithConfig.
type Config struct {
	Reset       ResetConfig
	RateLimit   RateLimitConfig
	Catalog     CatalogConfig
	Password    PasswordPolicyConfig
	Store       StoreConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	MultiTenant MultiTenantConfig
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig controls token lifetime, attempt capping, notifier dispatch
// and the expiry sweep.
type ResetConfig struct {
	TokenTTL time.Duration
	// MaxAttempts caps wrong captcha answers per token. 0 disables capping.
	MaxAttempts   int
	CreateRetries int

	// EnumerationSafe makes Issue answer unknown emails with a decoy result
	// instead of ErrAccountNotFound.
	EnumerationSafe     bool
	EnumerationDelayMin time.Duration
	EnumerationDelayMax time.Duration

	// LinkBaseURL is the page that accepts ?key=<token>.
	LinkBaseURL string

	NotifyTimeout      time.Duration
	SetPasswordTimeout time.Duration

	SweepGrace     time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

type RateLimitConfig struct {
	MaxIssuesPerWindow int
	Window             time.Duration
	EnableIPThrottle   bool
	MaxIssuesPerIP     int
	RedisPrefix        string
}

type CatalogConfig struct {
	Selection     catalog.Selection
	CaseSensitive bool
}

// Options converts c into catalog load options.
func (c CatalogConfig) Options(resolver catalog.Resolver) catalog.Options {
	return catalog.Options{
		Selection:     c.Selection,
		CaseSensitive: c.CaseSensitive,
		Resolver:      resolver,
	}
}

// PasswordPolicyConfig bounds the new password accepted by Verify.
type PasswordPolicyConfig struct {
	MinLength int
	MaxLength int
}

type StoreConfig struct {
	RedisPrefix string
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type MultiTenantConfig struct {
	Enabled      bool
	TenantHeader string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Reset: ResetConfig{
			TokenTTL:            15 * time.Minute,
			MaxAttempts:         5,
			CreateRetries:       3,
			EnumerationSafe:     true,
			EnumerationDelayMin: 50 * time.Millisecond,
			EnumerationDelayMax: 150 * time.Millisecond,
			LinkBaseURL:         "http://localhost:3000/reset-password",
			NotifyTimeout:       10 * time.Second,
			SetPasswordTimeout:  5 * time.Second,
			SweepGrace:          time.Hour,
			SweepInterval:       10 * time.Minute,
			SweepBatchSize:      500,
		},
		RateLimit: RateLimitConfig{
			MaxIssuesPerWindow: 3,
			Window:             time.Hour,
			EnableIPThrottle:   false,
			MaxIssuesPerIP:     20,
			RedisPrefix:        "rrl",
		},
		Catalog: CatalogConfig{
			Selection:     catalog.SelectRandom,
			CaseSensitive: false,
		},
		Password: PasswordPolicyConfig{
			MinLength: 10,
			MaxLength: 1024,
		},
		Store: StoreConfig{
			RedisPrefix: "rst",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		MultiTenant: MultiTenantConfig{
			Enabled:      false,
			TenantHeader: "X-Tenant-ID",
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field, naming it in the error.
func (c *Config) Validate() error {
	// Reset
	if c.Reset.TokenTTL <= 0 {
		return errors.New("Reset TokenTTL must be > 0")
	}
	if c.Reset.MaxAttempts < 0 || c.Reset.MaxAttempts > 65535 {
		return errors.New("Reset MaxAttempts must be between 0 and 65535")
	}
	if c.Reset.CreateRetries < 0 {
		return errors.New("Reset CreateRetries must be >= 0")
	}
	if c.Reset.EnumerationDelayMin < 0 || c.Reset.EnumerationDelayMax < c.Reset.EnumerationDelayMin {
		return errors.New("Reset EnumerationDelayMax must be >= EnumerationDelayMin >= 0")
	}
	if c.Reset.NotifyTimeout <= 0 {
		return errors.New("Reset NotifyTimeout must be > 0")
	}
	if c.Reset.SetPasswordTimeout <= 0 {
		return errors.New("Reset SetPasswordTimeout must be > 0")
	}
	if c.Reset.SweepGrace < 0 {
		return errors.New("Reset SweepGrace must be >= 0")
	}
	if c.Reset.SweepInterval <= 0 {
		return errors.New("Reset SweepInterval must be > 0")
	}
	if c.Reset.SweepBatchSize <= 0 {
		return errors.New("Reset SweepBatchSize must be > 0")
	}
	if u, err := url.Parse(c.Reset.LinkBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("Reset LinkBaseURL must be an absolute URL")
	}

	// Rate limit
	if c.RateLimit.MaxIssuesPerWindow <= 0 {
		return errors.New("RateLimit MaxIssuesPerWindow must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("RateLimit Window must be > 0")
	}
	if c.RateLimit.EnableIPThrottle && c.RateLimit.MaxIssuesPerIP <= 0 {
		return errors.New("RateLimit MaxIssuesPerIP must be > 0 when EnableIPThrottle is true")
	}
	if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
		return errors.New("RateLimit RedisPrefix must not be empty")
	}

	// Catalog
	switch c.Catalog.Selection {
	case catalog.SelectRandom, catalog.SelectRoundRobin:
	default:
		return errors.New("Catalog Selection must be 'random' or 'round_robin'")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}

	// Store
	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		return errors.New("Store RedisPrefix must not be empty")
	}
	if c.Store.RedisPrefix == c.RateLimit.RedisPrefix {
		return errors.New("Store RedisPrefix must differ from RateLimit RedisPrefix")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	// Multi-tenant
	if c.MultiTenant.Enabled && strings.TrimSpace(c.MultiTenant.TenantHeader) == "" {
		return errors.New("MultiTenant TenantHeader must not be empty when enabled")
	}

	return nil
}
