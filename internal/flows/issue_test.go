package flows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errTestInvalid     = errors.New("invalid")
	errTestLimited     = errors.New("limited")
	errTestNotFound    = errors.New("account not found")
	errTestUnavailable = errors.New("unavailable")
	errTestNotify      = errors.New("notify failed")
	errTestConflict    = errors.New("conflict")
	errTestNotReady    = errors.New("not ready")
)

type issueRecorder struct {
	mu       sync.Mutex
	calls    []string
	creates  int
	notified []Delivery
	metrics  map[int]int
	audits   []string
}

func (r *issueRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *issueRecorder) count(call string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}

func testIssueDeps(rec *issueRecorder) IssueDeps {
	rec.metrics = map[int]int{}
	return IssueDeps{
		TTL:             15 * time.Minute,
		MaxAttempts:     5,
		CreateRetries:   3,
		EnumerationSafe: true,
		NotifyTimeout:   time.Second,
		ResolveAccount: func(_ context.Context, email string) (Account, error) {
			rec.record("resolve")
			if email != "alice@example.com" {
				return Account{}, errTestNotFound
			}
			return Account{Ref: "acct-1", Contact: email}, nil
		},
		AllowIssue: func(context.Context, string, string, string) error {
			rec.record("allow")
			return nil
		},
		PickChallenge: func(context.Context) (Challenge, error) {
			rec.record("pick")
			return Challenge{ID: 7, DisplayRef: "captchas/7.png"}, nil
		},
		CreateToken: func(_ context.Context, tenantID, accountRef string, challengeID int, ttl time.Duration, _ int) (Token, error) {
			rec.record("create")
			return Token{
				TokenID:     "tok-1",
				TenantID:    tenantID,
				AccountRef:  accountRef,
				ChallengeID: challengeID,
				ExpiresAt:   time.Unix(0, 0).Add(ttl),
			}, nil
		},
		Notify: func(_ context.Context, d Delivery) error {
			rec.mu.Lock()
			rec.notified = append(rec.notified, d)
			rec.mu.Unlock()
			return nil
		},
		NewDecoyTokenID: func() (string, error) { return "decoy", nil },
		MetricInc: func(id int) {
			rec.mu.Lock()
			rec.metrics[id]++
			rec.mu.Unlock()
		},
		EmitAudit: func(_ context.Context, event string, _ bool, _, _, _ string, _ error, _ func() map[string]string) {
			rec.mu.Lock()
			rec.audits = append(rec.audits, event)
			rec.mu.Unlock()
		},
		Metrics: IssueMetrics{Request: 1, Success: 2, RateLimited: 3, Decoy: 4, Failure: 5, TokenConflict: 6, NotifySuccess: 7, NotifyFailure: 8},
		Events:  IssueEvents{Issue: "issue", RateLimited: "rate_limited", NotifySent: "notify_sent", NotifyFailed: "notify_failed"},
		Errors: IssueErrors{
			EngineNotReady:     errTestNotReady,
			Invalid:            errTestInvalid,
			RateLimited:        errTestLimited,
			AccountNotFound:    errTestNotFound,
			Unavailable:        errTestUnavailable,
			NotificationFailed: errTestNotify,
		},
	}
}

func waitDelivery(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("delivery result never arrived")
		return nil
	}
}

func TestRunIssueHappyPath(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)

	res, err := RunIssue(context.Background(), "  Alice@Example.com ", deps)
	if err != nil {
		t.Fatalf("RunIssue: %v", err)
	}
	if res.Outcome != OutcomeIssued || res.TokenID != "tok-1" || res.ChallengeID != 7 {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := waitDelivery(t, res.Delivery); err != nil {
		t.Fatalf("expected clean delivery, got %v", err)
	}
	if len(rec.notified) != 1 || rec.notified[0].DisplayRef != "captchas/7.png" || rec.notified[0].Contact != "alice@example.com" {
		t.Fatalf("unexpected notification %+v", rec.notified)
	}
	if rec.metrics[2] != 1 || rec.metrics[7] != 1 {
		t.Fatalf("expected success + notify success metrics, got %v", rec.metrics)
	}
}

func TestRunIssueRejectsBadEmail(t *testing.T) {
	for _, email := range []string{"", "   ", "no-at-sign", "@example.com", "a@", "a b@example.com"} {
		rec := &issueRecorder{}
		_, err := RunIssue(context.Background(), email, testIssueDeps(rec))
		if !errors.Is(err, errTestInvalid) {
			t.Fatalf("email %q: expected invalid, got %v", email, err)
		}
		if rec.count("resolve") != 0 {
			t.Fatalf("email %q: resolve must not run", email)
		}
	}
}

func TestRunIssueRateLimitedBeforeCatalogAndStore(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.AllowIssue = func(context.Context, string, string, string) error {
		rec.record("allow")
		return errTestLimited
	}

	res, err := RunIssue(context.Background(), "alice@example.com", deps)
	if !errors.Is(err, errTestLimited) || res.Outcome != OutcomeRateLimited {
		t.Fatalf("expected rate limited outcome, got %+v %v", res, err)
	}
	if rec.count("pick") != 0 || rec.count("create") != 0 {
		t.Fatalf("catalog/store touched after rate limit: %v", rec.calls)
	}
}

func TestRunIssueLimiterFailureFailsClosed(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.AllowIssue = func(context.Context, string, string, string) error { return errors.New("redis down") }
	deps.MapLimiterError = func(error) error { return errTestUnavailable }

	res, err := RunIssue(context.Background(), "alice@example.com", deps)
	if !errors.Is(err, errTestUnavailable) || res.Outcome != OutcomeRejected {
		t.Fatalf("expected unavailable, got %+v %v", res, err)
	}
	if rec.count("create") != 0 {
		t.Fatal("store must not be touched when the limiter is down")
	}
}

func TestRunIssueRetriesConflict(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	conflicts := 2
	deps.CreateToken = func(_ context.Context, _, accountRef string, challengeID int, _ time.Duration, _ int) (Token, error) {
		rec.record("create")
		if conflicts > 0 {
			conflicts--
			return Token{}, errTestConflict
		}
		return Token{TokenID: "tok-3", AccountRef: accountRef, ChallengeID: challengeID}, nil
	}
	deps.IsTokenConflict = func(err error) bool { return errors.Is(err, errTestConflict) }

	res, err := RunIssue(context.Background(), "alice@example.com", deps)
	if err != nil || res.TokenID != "tok-3" {
		t.Fatalf("expected success after retries, got %+v %v", res, err)
	}
	if rec.count("create") != 3 || rec.metrics[6] != 2 {
		t.Fatalf("expected 3 creates and 2 conflict metrics, got %d/%d", rec.count("create"), rec.metrics[6])
	}
	waitDelivery(t, res.Delivery)
}

func TestRunIssueConflictRetriesExhausted(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.CreateRetries = 1
	deps.CreateToken = func(context.Context, string, string, int, time.Duration, int) (Token, error) {
		rec.record("create")
		return Token{}, errTestConflict
	}
	deps.IsTokenConflict = func(err error) bool { return errors.Is(err, errTestConflict) }
	deps.MapStoreError = func(error) error { return errTestUnavailable }

	_, err := RunIssue(context.Background(), "alice@example.com", deps)
	if !errors.Is(err, errTestUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if errors.Is(err, errTestConflict) {
		t.Fatal("conflict must never surface")
	}
	if rec.count("create") != 2 {
		t.Fatalf("expected 2 create attempts, got %d", rec.count("create"))
	}
}

func TestRunIssueNotifierFailureIsSoft(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.Notify = func(context.Context, Delivery) error { return errors.New("smtp 451") }
	var logged int
	var logMu sync.Mutex
	deps.Logf = func(string, ...any) {
		logMu.Lock()
		logged++
		logMu.Unlock()
	}

	res, err := RunIssue(context.Background(), "alice@example.com", deps)
	if err != nil || res.Outcome != OutcomeIssued {
		t.Fatalf("notifier failure must not fail issue: %+v %v", res, err)
	}
	derr := waitDelivery(t, res.Delivery)
	if !errors.Is(derr, errTestNotify) {
		t.Fatalf("expected notification failure warning, got %v", derr)
	}
	logMu.Lock()
	defer logMu.Unlock()
	if logged != 1 {
		t.Fatalf("expected failure to be logged once, got %d", logged)
	}
}

func TestRunIssueDoesNotBlockOnNotifier(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	release := make(chan struct{})
	deps.Notify = func(context.Context, Delivery) error {
		<-release
		return nil
	}

	done := make(chan struct{})
	var res IssueResult
	go func() {
		res, _ = RunIssue(context.Background(), "alice@example.com", deps)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("issue blocked on the notifier")
	}
	close(release)
	if err := waitDelivery(t, res.Delivery); err != nil {
		t.Fatalf("unexpected delivery error %v", err)
	}
}

func TestRunIssueCallerCancelAfterCreateKeepsToken(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	ctx, cancel := context.WithCancel(context.Background())

	created := deps.CreateToken
	deps.CreateToken = func(c context.Context, tenantID, accountRef string, challengeID int, ttl time.Duration, maxAttempts int) (Token, error) {
		tok, err := created(c, tenantID, accountRef, challengeID, ttl, maxAttempts)
		cancel()
		return tok, err
	}
	notifyCtxErr := make(chan error, 1)
	deps.Notify = func(c context.Context, _ Delivery) error {
		notifyCtxErr <- c.Err()
		return nil
	}

	res, err := RunIssue(ctx, "alice@example.com", deps)
	if err != nil || res.Outcome != OutcomeIssued {
		t.Fatalf("expected issued despite cancel, got %+v %v", res, err)
	}
	if got := <-notifyCtxErr; got != nil {
		t.Fatalf("notifier context inherited caller cancel: %v", got)
	}
	waitDelivery(t, res.Delivery)
}

func TestRunIssueUnknownAccountDecoy(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	var limitKey string
	deps.AllowIssue = func(_ context.Context, _, key, _ string) error {
		limitKey = key
		return nil
	}
	deps.HashIdentifier = func(v string) string { return "h(" + v + ")" }

	res, err := RunIssue(context.Background(), "mallory@example.com", deps)
	if err != nil || res.Outcome != OutcomeIssued || !res.Decoy || res.TokenID != "decoy" {
		t.Fatalf("expected decoy, got %+v %v", res, err)
	}
	if limitKey != "e:h(mallory@example.com)" {
		t.Fatalf("unexpected limiter key %q", limitKey)
	}
	if rec.count("pick") != 0 || rec.count("create") != 0 || len(rec.notified) != 0 {
		t.Fatal("decoy must not touch catalog, store or notifier")
	}
	if err := waitDelivery(t, res.Delivery); err != nil {
		t.Fatalf("decoy delivery should be nil, got %v", err)
	}
}

func TestRunIssueUnknownAccountWithoutEnumerationSafety(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.EnumerationSafe = false

	_, err := RunIssue(context.Background(), "mallory@example.com", deps)
	if !errors.Is(err, errTestNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestRunIssueKeysTokenByRequestTenant(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.ResolveAccount = func(context.Context, string) (Account, error) {
		return Account{Ref: "acct-1", TenantID: "acme", Contact: "alice@example.com"}, nil
	}
	deps.TenantIDFromContext = func(context.Context) string { return "acme" }
	var createdFor string
	create := deps.CreateToken
	deps.CreateToken = func(ctx context.Context, tenantID, accountRef string, challengeID int, ttl time.Duration, maxAttempts int) (Token, error) {
		createdFor = tenantID
		return create(ctx, tenantID, accountRef, challengeID, ttl, maxAttempts)
	}

	res, err := RunIssue(context.Background(), "alice@example.com", deps)
	if err != nil || res.Decoy {
		t.Fatalf("expected real token, got %+v %v", res, err)
	}
	if createdFor != "acme" || res.TenantID != "acme" {
		t.Fatalf("token keyed under %q, result tenant %q", createdFor, res.TenantID)
	}
}

func TestRunIssueAccountFromOtherTenantIsUnknown(t *testing.T) {
	rec := &issueRecorder{}
	deps := testIssueDeps(rec)
	deps.ResolveAccount = func(context.Context, string) (Account, error) {
		return Account{Ref: "acct-1", TenantID: "acme", Contact: "alice@example.com"}, nil
	}

	res, err := RunIssue(context.Background(), "alice@example.com", deps)
	if err != nil || !res.Decoy {
		t.Fatalf("expected decoy for foreign-tenant account, got %+v %v", res, err)
	}
	if rec.count("create") != 0 || len(rec.notified) != 0 {
		t.Fatal("foreign-tenant account must not get a token")
	}

	deps.EnumerationSafe = false
	if _, err := RunIssue(context.Background(), "alice@example.com", deps); !errors.Is(err, errTestNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestAccountInTenant(t *testing.T) {
	cases := []struct {
		account, request string
		want             bool
	}{
		{"", "acme", true},
		{"0", "", true},
		{"0", "0", true},
		{"acme", "acme", true},
		{"acme", "", false},
		{"0", "acme", false},
	}
	for _, tc := range cases {
		if got := accountInTenant(tc.account, tc.request); got != tc.want {
			t.Errorf("accountInTenant(%q, %q) = %v, want %v", tc.account, tc.request, got, tc.want)
		}
	}
}

func TestRunIssueNotReady(t *testing.T) {
	_, err := RunIssue(context.Background(), "alice@example.com", IssueDeps{Errors: IssueErrors{EngineNotReady: errTestNotReady}})
	if !errors.Is(err, errTestNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}
