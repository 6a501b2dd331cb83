package goReset

import (
	"context"
	"fmt"
	"testing"

	"github.com/MrEthical07/goReset/catalog"
)

func newBenchEngine(b *testing.B, accounts int) *Engine {
	b.Helper()

	cat, err := catalog.New([]catalog.Entry{{ID: 1, Answer: "b3nc"}}, catalog.Options{})
	if err != nil {
		b.Fatal(err)
	}
	provider := &mockAccounts{byEmail: make(map[string]Account, accounts), passwords: map[string]string{}}
	for i := 0; i < accounts; i++ {
		email := fmt.Sprintf("user%d@bench.local", i)
		provider.byEmail[email] = Account{Ref: fmt.Sprintf("u%d", i), Email: email}
	}

	cfg := testConfig()
	cfg.RateLimit.MaxIssuesPerWindow = 1 << 30
	engine, err := New().
		WithConfig(cfg).
		WithMemoryBackends().
		WithCatalog(cat).
		WithAccountProvider(provider).
		WithNotifier(NotifierFunc(func(context.Context, Notification) error { return nil })).
		Build()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func BenchmarkIssue(b *testing.B) {
	engine := newBenchEngine(b, 1024)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Issue(ctx, fmt.Sprintf("user%d@bench.local", i%1024)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	engine := newBenchEngine(b, 1)
	ctx := context.Background()

	ids := make([]string, b.N)
	for i := range ids {
		res, err := engine.Issue(ctx, "user0@bench.local")
		if err != nil {
			b.Fatal(err)
		}
		ids[i] = res.TokenID
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Verify(ctx, ids[i], "b3nc", "bench-passphrase"); err != nil {
			b.Fatal(err)
		}
	}
}
