package goReset

import (
	"database/sql"
	"time"

	"github.com/MrEthical07/goReset/internal/rate"
	"github.com/MrEthical07/goReset/internal/stores"
	"github.com/redis/go-redis/v9"
)

// NewRedisTokenStore returns a Redis-backed TokenStore. Keys live for the
// token TTL plus retention so the expiry sweep can still see them.
func NewRedisTokenStore(client redis.UniversalClient, prefix string, retention time.Duration, answers AnswerMatcher) TokenStore {
	return stores.NewRedisTokenStore(client, prefix, retention, answers)
}

// NewPostgresTokenStore returns a database/sql TokenStore. Apply the
// embedded migrations first (see cmd/resetd -migrate).
func NewPostgresTokenStore(db *sql.DB, answers AnswerMatcher) TokenStore {
	return stores.NewPostgresTokenStore(db, answers)
}

// NewMemoryTokenStore returns a process-local TokenStore for tests and
// single-instance development.
func NewMemoryTokenStore(answers AnswerMatcher) TokenStore {
	return stores.NewMemoryTokenStore(answers)
}

// NewRedisRateCounter returns a RateCounter using INCR and EXPIRE.
func NewRedisRateCounter(client redis.UniversalClient) RateCounter {
	return rate.NewRedisCounter(client)
}

// NewMemoryRateCounter returns a process-local RateCounter.
func NewMemoryRateCounter() RateCounter {
	return rate.NewMemoryCounter(nil)
}

// RunMigrations applies (direction "up") or reverts ("down") the token
// table migrations against a Postgres DSN. No pending change is not an
// error.
func RunMigrations(dsn, direction string) error {
	return stores.RunMigrations(dsn, direction)
}
