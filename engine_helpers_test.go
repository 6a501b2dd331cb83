package goReset

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goReset/catalog"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c, err := catalog.New([]catalog.Entry{
		{ID: 7, Answer: "x7kq", Image: "captchas/7.png"},
	}, catalog.Options{Selection: catalog.SelectRandom})
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	return c
}

type mockAccounts struct {
	mu        sync.Mutex
	byEmail   map[string]Account
	passwords map[string]string
	setCalls  int
	setErr    error
	resolveFn func(ctx context.Context, email string) (Account, error)
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{
		byEmail: map[string]Account{
			"alice@example.com": {Ref: "u1", TenantID: "0", Email: "alice@example.com"},
			"bob@example.com":   {Ref: "u2", TenantID: "0", Email: "bob@example.com"},
		},
		passwords: map[string]string{},
	}
}

func (m *mockAccounts) ResolveAccount(ctx context.Context, email string) (Account, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acct, nil
}

func (m *mockAccounts) SetPassword(_ context.Context, accountRef, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.passwords[accountRef] = newPassword
	return nil
}

func (m *mockAccounts) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}

func (m *mockAccounts) Password(ref string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[ref]
}

type captureNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	err   error
	delay time.Duration
}

func (n *captureNotifier) Send(ctx context.Context, msg Notification) error {
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *captureNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
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

// countingStore counts Create calls.
type countingStore struct {
	TokenStore
	mu      sync.Mutex
	creates int
}

func (s *countingStore) Create(ctx context.Context, tenantID, accountRef string, challengeID int, ttl time.Duration, maxAttempts int) (TokenRecord, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return s.TokenStore.Create(ctx, tenantID, accountRef, challengeID, ttl, maxAttempts)
}

func (s *countingStore) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

type testEngineOptions struct {
	cfg      *Config
	accounts *mockAccounts
	notifier *captureNotifier
	clock    *testClock
	sink     AuditSink
	store    TokenStore
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Reset.EnumerationDelayMin = 0
	cfg.Reset.EnumerationDelayMax = 0
	cfg.Reset.NotifyTimeout = 2 * time.Second
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, rdb redis.UniversalClient, opts testEngineOptions) *Engine {
	t.Helper()

	cfg := testConfig()
	if opts.cfg != nil {
		cfg = *opts.cfg
	}
	if opts.accounts == nil {
		opts.accounts = newMockAccounts()
	}
	if opts.notifier == nil {
		opts.notifier = &captureNotifier{}
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCatalog(newTestCatalog(t)).
		WithAccountProvider(opts.accounts).
		WithNotifier(opts.notifier)
	if opts.clock != nil {
		b = b.WithClock(opts.clock.Now)
	}
	if opts.sink != nil {
		b = b.WithAuditSink(opts.sink)
	}
	if opts.store != nil {
		b = b.WithTokenStore(opts.store)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func issueForTest(t *testing.T, e *Engine, email string) IssueResult {
	t.Helper()

	res, err := e.Issue(context.Background(), email)
	if err != nil {
		t.Fatalf("Issue(%q) failed: %v", email, err)
	}
	if res.Outcome != OutcomeIssued {
		t.Fatalf("Issue(%q) outcome = %v", email, res.Outcome)
	}
	return res
}

func waitDelivery(t *testing.T, res IssueResult) error {
	t.Helper()

	if res.Delivery == nil {
		t.Fatal("expected delivery channel")
	}
	select {
	case err := <-res.Delivery:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return errors.New("unreachable")
	}
}
