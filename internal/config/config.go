// Package config loads resetd settings from the environment and an optional
// .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/catalog"
	"github.com/spf13/viper"
)

// Config holds resetd configuration.
type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	Env      string `mapstructure:"APP_ENV"`

	// TokenBackend is redis, postgres or memory.
	TokenBackend  string `mapstructure:"TOKEN_BACKEND"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// DatabaseURL is the Postgres DSN for the token table and the users
	// table. Empty keeps accounts in memory, which only suits demos.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	CatalogPath      string        `mapstructure:"CATALOG_PATH"`
	CatalogSelection string        `mapstructure:"CATALOG_SELECTION"`
	CaptchaBaseURL   string        `mapstructure:"CAPTCHA_BASE_URL"`
	CaptchaS3Bucket  string        `mapstructure:"CAPTCHA_S3_BUCKET"`
	CaptchaS3Prefix  string        `mapstructure:"CAPTCHA_S3_PREFIX"`
	CaptchaURLTTL    time.Duration `mapstructure:"CAPTCHA_URL_TTL"`
	AWSRegion        string        `mapstructure:"AWS_REGION"`
	AWSAccessKeyID   string        `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey     string        `mapstructure:"AWS_SECRET_ACCESS_KEY"`

	ResetLinkBaseURL string        `mapstructure:"RESET_LINK_BASE_URL"`
	ResetTokenTTL    time.Duration `mapstructure:"RESET_TOKEN_TTL"`
	ResetMaxAttempts int           `mapstructure:"RESET_MAX_ATTEMPTS"`
	ResetRateLimit   int           `mapstructure:"RESET_RATE_LIMIT"`
	ResetRateWindow  time.Duration `mapstructure:"RESET_RATE_WINDOW"`
	ResetIPRateLimit int           `mapstructure:"RESET_IP_RATE_LIMIT"`
	EnumerationSafe  bool          `mapstructure:"RESET_ENUMERATION_SAFE"`
	SweepInterval    time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepGrace       time.Duration `mapstructure:"SWEEP_GRACE"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
	SMTPFromName string `mapstructure:"SMTP_FROM_NAME"`

	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	ResetKafkaTopic string `mapstructure:"RESET_KAFKA_TOPIC"`

	// ReturnTokenToClient echoes issued tokens in HTTP responses. Refused
	// when APP_ENV is production.
	ReturnTokenToClient bool   `mapstructure:"RETURN_TOKEN_TO_CLIENT"`
	TenantHeader        string `mapstructure:"TENANT_HEADER"`
	CORSAllowedOrigins  string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	AuditLog       bool   `mapstructure:"AUDIT_LOG"`
	MetricsEnabled bool   `mapstructure:"METRICS_ENABLED"`
	OTLPEndpoint   string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Environment variables override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()

	def := goReset.DefaultConfig()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("TOKEN_BACKEND", "redis")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("CATALOG_PATH", "captchas.json")
	v.SetDefault("CATALOG_SELECTION", string(def.Catalog.Selection))
	v.SetDefault("CAPTCHA_BASE_URL", "")
	v.SetDefault("CAPTCHA_S3_BUCKET", "")
	v.SetDefault("CAPTCHA_S3_PREFIX", "")
	v.SetDefault("CAPTCHA_URL_TTL", "30m")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("RESET_LINK_BASE_URL", def.Reset.LinkBaseURL)
	v.SetDefault("RESET_TOKEN_TTL", def.Reset.TokenTTL.String())
	v.SetDefault("RESET_MAX_ATTEMPTS", def.Reset.MaxAttempts)
	v.SetDefault("RESET_RATE_LIMIT", def.RateLimit.MaxIssuesPerWindow)
	v.SetDefault("RESET_RATE_WINDOW", def.RateLimit.Window.String())
	v.SetDefault("RESET_IP_RATE_LIMIT", 0)
	v.SetDefault("RESET_ENUMERATION_SAFE", def.Reset.EnumerationSafe)
	v.SetDefault("SWEEP_INTERVAL", def.Reset.SweepInterval.String())
	v.SetDefault("SWEEP_GRACE", def.Reset.SweepGrace.String())
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("SMTP_FROM_NAME", "TezosAcademy")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("RESET_KAFKA_TOPIC", "password-resets")
	v.SetDefault("RETURN_TOKEN_TO_CLIENT", false)
	v.SetDefault("TENANT_HEADER", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("AUDIT_LOG", false)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	switch c.TokenBackend {
	case "redis", "postgres", "memory":
	default:
		return errors.New("config: TOKEN_BACKEND must be redis, postgres or memory")
	}
	if c.TokenBackend == "postgres" && c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set when TOKEN_BACKEND=postgres")
	}
	if c.ReturnTokenToClient && c.Env == "production" {
		return errors.New("config: RETURN_TOKEN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return errors.New("config: SMTP_FROM must be set when SMTP_HOST is set")
	}
	if c.CaptchaBaseURL != "" && c.CaptchaS3Bucket != "" {
		return errors.New("config: set only one of CAPTCHA_BASE_URL and CAPTCHA_S3_BUCKET")
	}
	return nil
}

// EngineConfig maps the environment onto goReset.DefaultConfig.
func (c *Config) EngineConfig() goReset.Config {
	cfg := goReset.DefaultConfig()

	cfg.Reset.LinkBaseURL = c.ResetLinkBaseURL
	cfg.Reset.TokenTTL = c.ResetTokenTTL
	cfg.Reset.MaxAttempts = c.ResetMaxAttempts
	cfg.Reset.EnumerationSafe = c.EnumerationSafe
	cfg.Reset.SweepInterval = c.SweepInterval
	cfg.Reset.SweepGrace = c.SweepGrace

	cfg.RateLimit.MaxIssuesPerWindow = c.ResetRateLimit
	cfg.RateLimit.Window = c.ResetRateWindow
	if c.ResetIPRateLimit > 0 {
		cfg.RateLimit.EnableIPThrottle = true
		cfg.RateLimit.MaxIssuesPerIP = c.ResetIPRateLimit
	}

	cfg.Catalog.Selection = catalog.Selection(c.CatalogSelection)

	cfg.Audit.Enabled = c.AuditLog
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled

	if c.TenantHeader != "" {
		cfg.MultiTenant.Enabled = true
		cfg.MultiTenant.TenantHeader = c.TenantHeader
	}
	return cfg
}

// KafkaBrokersList splits KAFKA_BROKERS on commas.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
