package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/accounts"
	"github.com/MrEthical07/goReset/catalog"
	"github.com/MrEthical07/goReset/internal/config"
	"github.com/MrEthical07/goReset/notify"
	"github.com/MrEthical07/goReset/password"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

type app struct {
	engine  *goReset.Engine
	closers []func() error
}

// close releases resources in reverse order of acquisition. The engine goes
// first so pending notifications finish before their transports close.
func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	engineCfg := cfg.EngineConfig()
	b := goReset.New().WithConfig(engineCfg)

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
	}

	switch cfg.TokenBackend {
	case "memory":
		b.WithMemoryBackends()
	case "redis", "postgres":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.WithRedis(rdb)
		if cfg.TokenBackend == "postgres" {
			b.WithPostgres(db)
		}
	}

	resolver, err := newResolver(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("captcha images: %w", err)
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath, engineCfg.Catalog.Options(resolver))
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	b.WithCatalog(cat)

	policy := password.Policy{MinLength: engineCfg.Password.MinLength, MaxLength: engineCfg.Password.MaxLength}
	hasher, err := password.NewArgon2(password.DefaultConfig().ForPolicy(policy))
	if err != nil {
		return nil, fmt.Errorf("hasher: %w", err)
	}
	if db != nil {
		b.WithAccountProvider(accounts.NewSQLProvider(db, hasher))
	} else {
		log.Printf("DATABASE_URL not set: accounts are kept in memory and start empty")
		b.WithAccountProvider(accounts.NewMemoryProvider(hasher))
	}

	n, err := newNotifier(cfg, a)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	b.WithNotifier(n)

	if cfg.AuditLog {
		b.WithAuditSink(goReset.NewJSONWriterSink(os.Stdout))
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	a.engine = engine

	report := engine.SecurityReport()
	log.Printf("reset engine: backend=%s ttl=%s attempts=%d issues=%d/%s enumeration_safe=%t",
		report.TokenBackend, report.TokenTTL, report.MaxAttempts, report.MaxIssuesPerWindow, report.RateWindow, report.EnumerationSafe)
	for _, w := range report.Warnings {
		log.Printf("reset engine warning: %s", w)
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := setupOTel(ctx, cfg.OTLPEndpoint, engine)
		if err != nil {
			return nil, fmt.Errorf("otel: %w", err)
		}
		a.closers = append(a.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(shutdownCtx)
		})
	}

	ok = true
	return a, nil
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newResolver(ctx context.Context, cfg *config.Config) (catalog.Resolver, error) {
	switch {
	case cfg.CaptchaS3Bucket != "":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
		if cfg.AWSAccessKeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return catalog.NewS3Resolver(s3.NewFromConfig(awsCfg), cfg.CaptchaS3Bucket, cfg.CaptchaS3Prefix, cfg.CaptchaURLTTL), nil
	case cfg.CaptchaBaseURL != "":
		return catalog.NewURLResolver(cfg.CaptchaBaseURL)
	default:
		return nil, nil
	}
}

// newNotifier fans out to every configured transport. With none configured
// it logs the notification, which is only useful in development.
func newNotifier(cfg *config.Config, a *app) (goReset.Notifier, error) {
	var out notify.Multi

	if cfg.SMTPHost != "" {
		smtpN, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, smtpN)
	}

	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		k, err := notify.NewKafkaNotifier(brokers, cfg.ResetKafkaTopic, "")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, k.Close)
		out = append(out, k)
	}

	switch len(out) {
	case 0:
		if cfg.Env == "production" {
			return nil, errors.New("no notifier configured: set SMTP_HOST or KAFKA_BROKERS")
		}
		return notify.LogNotifier{}, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}
