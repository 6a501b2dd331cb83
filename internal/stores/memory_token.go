package stores

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	tenantID string
	tokenID  string
}

// MemoryTokenStore keeps reset tokens in process. All mutation happens under
// one mutex, which makes ConsumeIfValid trivially atomic.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[memoryKey]TokenRecord
	answers AnswerMatcher
	now     func() time.Time
}

func NewMemoryTokenStore(answers AnswerMatcher) *MemoryTokenStore {
	return &MemoryTokenStore{
		records: make(map[memoryKey]TokenRecord),
		answers: answers,
		now:     time.Now,
	}
}

// WithClock replaces the store clock. Intended for tests.
func (s *MemoryTokenStore) WithClock(now func() time.Time) *MemoryTokenStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *MemoryTokenStore) Create(
	ctx context.Context,
	tenantID, accountRef string,
	challengeID int,
	ttl time.Duration,
	maxAttempts int,
) (TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return TokenRecord{}, err
	}

	rec, err := newTokenRecord(tenantID, accountRef, challengeID, s.now(), ttl, maxAttempts)
	if err != nil {
		return TokenRecord{}, err
	}

	k := memoryKey{tenantID: rec.TenantID, tokenID: rec.TokenID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[k]; exists {
		return TokenRecord{}, ErrTokenConflict
	}
	s.records[k] = rec
	return rec, nil
}

func (s *MemoryTokenStore) ConsumeIfValid(ctx context.Context, tenantID, tokenID, answer string) (TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return TokenRecord{}, err
	}

	k := memoryKey{tenantID: normalizeTenantID(tenantID), tokenID: tokenID}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[k]
	if !ok {
		return TokenRecord{}, ErrTokenNotFound
	}

	changed, verdict := applyAttempt(&rec, s.now(), answer, s.answers)
	if changed {
		s.records[k] = rec
	}
	return rec, verdict
}

func (s *MemoryTokenStore) Get(ctx context.Context, tenantID, tokenID string) (TokenRecord, error) {
	if err := ctx.Err(); err != nil {
		return TokenRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[memoryKey{tenantID: normalizeTenantID(tenantID), tokenID: tokenID}]
	if !ok {
		return TokenRecord{}, ErrTokenNotFound
	}
	return rec, nil
}

func (s *MemoryTokenStore) SweepExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, rec := range s.records {
		if limit > 0 && removed >= limit {
			break
		}
		if rec.ExpiresAt.Before(before) {
			delete(s.records, k)
			removed++
		}
	}
	return removed, nil
}
