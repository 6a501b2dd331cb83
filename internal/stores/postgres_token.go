package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresTokenStore persists reset tokens in the reset_tokens table.
// ConsumeIfValid locks the row with SELECT ... FOR UPDATE and commits the
// verdict in the same transaction.
type PostgresTokenStore struct {
	db      *sql.DB
	answers AnswerMatcher
	now     func() time.Time
}

func NewPostgresTokenStore(db *sql.DB, answers AnswerMatcher) *PostgresTokenStore {
	return &PostgresTokenStore{
		db:      db,
		answers: answers,
		now:     time.Now,
	}
}

// WithClock replaces the store clock. Intended for tests.
func (s *PostgresTokenStore) WithClock(now func() time.Time) *PostgresTokenStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *PostgresTokenStore) Create(
	ctx context.Context,
	tenantID, accountRef string,
	challengeID int,
	ttl time.Duration,
	maxAttempts int,
) (TokenRecord, error) {
	rec, err := newTokenRecord(tenantID, accountRef, challengeID, s.now(), ttl, maxAttempts)
	if err != nil {
		return TokenRecord{}, err
	}

	const query = `
		INSERT INTO reset_tokens (token_id, tenant_id, account_ref, challenge_id, issued_at, expires_at, attempts_remaining)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.TokenID, rec.TenantID, rec.AccountRef, rec.ChallengeID, rec.IssuedAt, rec.ExpiresAt, int(rec.AttemptsRemaining),
	)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return TokenRecord{}, ErrTokenConflict
	}

	return rec, nil
}

func (s *PostgresTokenStore) ConsumeIfValid(ctx context.Context, tenantID, tokenID, answer string) (TokenRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	const selectQuery = `
		SELECT account_ref, challenge_id, issued_at, expires_at, consumed_at, attempts_remaining
		FROM reset_tokens
		WHERE token_id = $1 AND tenant_id = $2
		FOR UPDATE
	`
	rec, err := scanTokenRecord(tx.QueryRowContext(ctx, selectQuery, tokenID, normalizeTenantID(tenantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenRecord{}, ErrTokenNotFound
		}
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec.TokenID = tokenID
	rec.TenantID = normalizeTenantID(tenantID)

	now := s.now()
	changed, verdict := applyAttempt(&rec, now, answer, s.answers)
	if !changed {
		return rec, verdict
	}

	var consumedAt sql.NullTime
	if rec.Consumed {
		consumedAt = sql.NullTime{Time: now.UTC(), Valid: true}
	}

	const updateQuery = `
		UPDATE reset_tokens
		SET consumed_at = $1, attempts_remaining = $2
		WHERE token_id = $3 AND consumed_at IS NULL
	`
	res, err := tx.ExecContext(ctx, updateQuery, consumedAt, int(rec.AttemptsRemaining), tokenID)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n == 0 {
		return rec, ErrTokenAlreadyUsed
	}

	if err := tx.Commit(); err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, verdict
}

func (s *PostgresTokenStore) Get(ctx context.Context, tenantID, tokenID string) (TokenRecord, error) {
	const query = `
		SELECT account_ref, challenge_id, issued_at, expires_at, consumed_at, attempts_remaining
		FROM reset_tokens
		WHERE token_id = $1 AND tenant_id = $2
	`
	rec, err := scanTokenRecord(s.db.QueryRowContext(ctx, query, tokenID, normalizeTenantID(tenantID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TokenRecord{}, ErrTokenNotFound
		}
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	rec.TokenID = tokenID
	rec.TenantID = normalizeTenantID(tenantID)
	return rec, nil
}

func (s *PostgresTokenStore) SweepExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}

	const query = `
		DELETE FROM reset_tokens
		WHERE token_id IN (
			SELECT token_id FROM reset_tokens
			WHERE expires_at < $1
			ORDER BY expires_at
			LIMIT $2
		)
	`
	res, err := s.db.ExecContext(ctx, query, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func scanTokenRecord(row *sql.Row) (TokenRecord, error) {
	var (
		rec        TokenRecord
		consumedAt sql.NullTime
		attempts   int
	)
	if err := row.Scan(&rec.AccountRef, &rec.ChallengeID, &rec.IssuedAt, &rec.ExpiresAt, &consumedAt, &attempts); err != nil {
		return TokenRecord{}, err
	}
	rec.Consumed = consumedAt.Valid
	if attempts > 0 {
		rec.AttemptsRemaining = uint16(attempts)
	}
	return rec, nil
}
