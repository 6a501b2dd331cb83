package goReset

import (
	"database/sql"
	"errors"
	"time"

	"github.com/MrEthical07/goReset/catalog"
	"github.com/MrEthical07/goReset/internal/flows"
	"github.com/MrEthical07/goReset/internal/rate"
	"github.com/MrEthical07/goReset/internal/stores"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. It is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *sql.DB
	memory bool

	tokenStore  TokenStore
	rateCounter RateCounter

	catalog   *catalog.Catalog
	accounts  AccountProvider
	notifier  Notifier
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder populated with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs both the token store and the issuance limiter with
// client unless WithTokenStore or WithRateCounter override them.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres stores tokens in the reset_tokens table reachable via db.
// It takes precedence over WithRedis for the token store only.
func (b *Builder) WithPostgres(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithMemoryBackends uses process-local token and rate stores. Only
// suitable for tests and single-instance development.
func (b *Builder) WithMemoryBackends() *Builder {
	b.memory = true
	return b
}

func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokenStore = store
	return b
}

func (b *Builder) WithRateCounter(counter RateCounter) *Builder {
	b.rateCounter = counter
	return b
}

func (b *Builder) WithCatalog(c *catalog.Catalog) *Builder {
	b.catalog = c
	return b
}

func (b *Builder) WithAccountProvider(p AccountProvider) *Builder {
	b.accounts = p
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces time.Now for expiry decisions in the engine and the
// stores it builds. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.catalog == nil {
		return nil, errors.New("challenge catalog required")
	}
	if b.accounts == nil {
		return nil, errors.New("account provider required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKEN STORE --------
	store := b.tokenStore
	backend := "custom"
	switch {
	case store != nil:
	case b.db != nil:
		store = stores.NewPostgresTokenStore(b.db, b.catalog).WithClock(now)
		backend = "postgres"
	case b.redis != nil:
		store = stores.NewRedisTokenStore(b.redis, cfg.Store.RedisPrefix, cfg.Reset.SweepGrace, b.catalog).WithClock(now)
		backend = "redis"
	case b.memory:
		store = stores.NewMemoryTokenStore(b.catalog).WithClock(now)
		backend = "memory"
	default:
		return nil, errors.New("token store required: use WithRedis, WithPostgres, WithMemoryBackends or WithTokenStore")
	}

	// -------- RATE COUNTER --------
	counter := b.rateCounter
	switch {
	case counter != nil:
	case b.redis != nil:
		counter = rate.NewRedisCounter(b.redis)
	case b.memory:
		counter = rate.NewMemoryCounter(now)
	default:
		return nil, errors.New("rate counter required: use WithRedis, WithMemoryBackends or WithRateCounter")
	}

	engine := &Engine{
		config:   cfg,
		store:    store,
		backend:  backend,
		limiter:  newIssueLimiter(counter, cfg.RateLimit),
		catalog:  b.catalog,
		accounts: b.accounts,
		notifier: b.notifier,
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
		now:      now,
	}

	engine.flows = flows.New(flows.Deps{
		Issue:  engine.issueFlowDeps(),
		Verify: engine.verifyFlowDeps(),
		Sweep:  engine.sweepFlowDeps(),
		Lookup: engine.lookupFlowDeps(),
	})

	b.built = true

	return engine, nil
}
