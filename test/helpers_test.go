//go:build integration
// +build integration

package test

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/accounts"
	"github.com/MrEthical07/goReset/catalog"
	"github.com/MrEthical07/goReset/notify"
	"github.com/MrEthical07/goReset/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testAnswer   = "m4xv"
	testPassword = "integration-passphrase"
)

type stack struct {
	engine   *goReset.Engine
	accounts *accounts.MemoryProvider
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	clock    *clock
	inbox    *inbox
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// inbox records every notification handed to the notifier chain.
type inbox struct {
	mu   sync.Mutex
	sent []goReset.Notification
}

func (i *inbox) Send(_ context.Context, n goReset.Notification) error {
	i.mu.Lock()
	i.sent = append(i.sent, n)
	i.mu.Unlock()
	return nil
}

func (i *inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sent)
}

func newStack(t *testing.T, rdb *redis.Client, mr *miniredis.Miniredis) *stack {
	t.Helper()

	cat, err := catalog.New([]catalog.Entry{{ID: 11, Answer: testAnswer, Image: "captchas/11.png"}}, catalog.Options{})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	provider := accounts.NewMemoryProvider(hasher)
	provider.Add(goReset.Account{Ref: "u1", Email: "alice@example.com"})
	provider.Add(goReset.Account{Ref: "u2", Email: "bob@example.com"})

	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	box := &inbox{}

	cfg := goReset.DefaultConfig()
	cfg.Reset.EnumerationDelayMin = 0
	cfg.Reset.EnumerationDelayMax = 0
	cfg.Reset.MaxAttempts = 3

	engine, err := goReset.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCatalog(cat).
		WithAccountProvider(provider).
		WithNotifier(notify.Multi{notify.LogNotifier{Logger: log.New(io.Discard, "", 0)}, box}).
		WithClock(clk.Now).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	return &stack{engine: engine, accounts: provider, mr: mr, rdb: rdb, clock: clk, inbox: box}
}

func newIntegrationStack(t *testing.T) *stack {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return newStack(t, rdb, mr)
}

// issue starts a reset for email and waits for its notification.
func (s *stack) issue(t *testing.T, email string) string {
	t.Helper()

	res, err := s.engine.Issue(context.Background(), email)
	if err != nil {
		t.Fatalf("Issue(%s): %v", email, err)
	}
	select {
	case err := <-res.Delivery:
		if err != nil {
			t.Fatalf("delivery: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery timed out")
	}
	return res.TokenID
}
