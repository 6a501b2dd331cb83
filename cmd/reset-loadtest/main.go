// Command reset-loadtest drives Issue and Verify against a Redis-backed
// engine and prints latency percentiles. Without -redis-addr or REDIS_ADDR
// it runs against miniredis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/accounts"
	"github.com/MrEthical07/goReset/catalog"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	captchaAnswer = "q7zr"
	newPassword   = "load-test-password"
)

func main() {
	var (
		accountCount = flag.Int("accounts", 10000, "number of accounts to seed")
		concurrency  = flag.Int("concurrency", 128, "number of concurrent workers")
		issues       = flag.Int("issues", 20000, "tokens to issue")
		racers       = flag.Int("racers", 4, "concurrent verifies per token")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *accountCount <= 0 || *concurrency <= 0 || *issues <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, issues and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, emails, err := buildEngine(client, *accountCount, *issues)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	tokens, issueStats := runIssuePhase(ctx, engine, emails, *issues, *concurrency)
	verifyStats, verified := runVerifyPhase(ctx, engine, tokens, *racers, *concurrency)

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("verify", verifyStats)
	fmt.Printf("tokens=%d verified=%d\n", len(tokens), verified)
	if verified != int64(len(tokens)) {
		fmt.Fprintln(os.Stderr, "FAIL: every token must verify exactly once")
		os.Exit(1)
	}
}

func buildEngine(client redis.UniversalClient, accountCount, issues int) (*goReset.Engine, []string, error) {
	cat, err := catalog.New([]catalog.Entry{{ID: 1, Answer: captchaAnswer}}, catalog.Options{})
	if err != nil {
		return nil, nil, err
	}

	provider := accounts.NewMemoryProvider(nil)
	emails := make([]string, accountCount)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@loadtest.local", i)
		provider.Add(goReset.Account{Ref: fmt.Sprintf("u%d", i), Email: emails[i]})
	}

	cfg := goReset.DefaultConfig()
	cfg.Reset.EnumerationDelayMin = 0
	cfg.Reset.EnumerationDelayMax = 0
	cfg.RateLimit.MaxIssuesPerWindow = issues

	engine, err := goReset.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCatalog(cat).
		WithAccountProvider(provider).
		WithNotifier(goReset.NotifierFunc(func(context.Context, goReset.Notification) error { return nil })).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, emails, nil
}

func runIssuePhase(ctx context.Context, engine *goReset.Engine, emails []string, ops, concurrency int) ([]string, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		tokens    = make([]string, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				email := emails[r.Intn(len(emails))]
				t0 := time.Now()
				res, err := engine.Issue(ctx, email)
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				if err == nil {
					tokens = append(tokens, res.TokenID)
				}
				mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}(w)
	}
	wg.Wait()
	return tokens, computeStats(time.Since(start), latencies, failures)
}

// runVerifyPhase submits the correct answer for every token from racers
// goroutines at once. Exactly one per token may win.
func runVerifyPhase(ctx context.Context, engine *goReset.Engine, tokens []string, racers, concurrency int) (phaseStats, int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		verified  int64
		latencies = make([]time.Duration, 0, len(tokens)*racers)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(tokens) {
					return
				}

				var race sync.WaitGroup
				for r := 0; r < racers; r++ {
					race.Add(1)
					go func() {
						defer race.Done()
						t0 := time.Now()
						res, err := engine.Verify(ctx, tokens[i], captchaAnswer, newPassword)
						d := time.Since(t0)
						if err == nil && res.Outcome == goReset.OutcomeVerified {
							atomic.AddInt64(&verified, 1)
						} else if !errors.Is(err, goReset.ErrTokenAlreadyUsed) {
							atomic.AddInt64(&failures, 1)
						}
						mu.Lock()
						latencies = append(latencies, d)
						mu.Unlock()
					}()
				}
				race.Wait()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures), verified
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
