package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

var tokenColumns = []string{"account_ref", "challenge_id", "issued_at", "expires_at", "consumed_at", "attempts_remaining"}

func TestPostgresTokenStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	clock := newTestClock()
	store := NewPostgresTokenStore(db, staticAnswers{0: "a"}).WithClock(clock.Now)

	mock.ExpectExec("INSERT INTO reset_tokens").
		WithArgs(sqlmock.AnyArg(), "0", "acct-1", 4, clock.Now(), clock.Now().Add(15*time.Minute), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.Create(context.Background(), "", "acct-1", 4, 15*time.Minute, 5)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if rec.TokenID == "" || rec.AttemptsRemaining != 5 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresTokenStoreCreateConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPostgresTokenStore(db, staticAnswers{0: "a"})
	mock.ExpectExec("INSERT INTO reset_tokens").WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.Create(context.Background(), "0", "acct-1", 0, time.Minute, 5); !errors.Is(err, ErrTokenConflict) {
		t.Fatalf("expected ErrTokenConflict, got %v", err)
	}
}

func TestPostgresTokenStoreConsumeSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	clock := newTestClock()
	store := NewPostgresTokenStore(db, staticAnswers{2: "right"}).WithClock(clock.Now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT account_ref, challenge_id, issued_at, expires_at, consumed_at, attempts_remaining\s+FROM reset_tokens\s+WHERE token_id = \$1 AND tenant_id = \$2\s+FOR UPDATE`).
		WithArgs("tok", "0").
		WillReturnRows(sqlmock.NewRows(tokenColumns).
			AddRow("acct-1", 2, clock.Now(), clock.Now().Add(time.Minute), nil, 5))
	mock.ExpectExec(`UPDATE reset_tokens\s+SET consumed_at = \$1, attempts_remaining = \$2\s+WHERE token_id = \$3 AND consumed_at IS NULL`).
		WithArgs(sqlmock.AnyArg(), 5, "tok").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, err := store.ConsumeIfValid(context.Background(), "0", "tok", "right")
	if err != nil {
		t.Fatalf("ConsumeIfValid failed: %v", err)
	}
	if rec.AccountRef != "acct-1" || !rec.Consumed {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresTokenStoreConsumeLostRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	clock := newTestClock()
	store := NewPostgresTokenStore(db, staticAnswers{2: "right"}).WithClock(clock.Now)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM reset_tokens").
		WillReturnRows(sqlmock.NewRows(tokenColumns).
			AddRow("acct-1", 2, clock.Now(), clock.Now().Add(time.Minute), nil, 5))
	mock.ExpectExec("UPDATE reset_tokens").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if _, err := store.ConsumeIfValid(context.Background(), "0", "tok", "right"); !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Fatalf("expected ErrTokenAlreadyUsed, got %v", err)
	}
}

func TestPostgresTokenStoreConsumeVerdicts(t *testing.T) {
	clock := newTestClock()
	consumed := clock.Now().Add(-time.Second)

	tests := []struct {
		name       string
		expiresAt  time.Time
		consumedAt interface{}
		answer     string
		wantErr    error
		wantUpdate bool
	}{
		{name: "expired", expiresAt: clock.Now().Add(-time.Second), answer: "right", wantErr: ErrTokenExpired},
		{name: "already used", expiresAt: clock.Now().Add(time.Minute), consumedAt: consumed, answer: "right", wantErr: ErrTokenAlreadyUsed},
		{name: "wrong answer", expiresAt: clock.Now().Add(time.Minute), answer: "wrong", wantErr: ErrWrongAnswer, wantUpdate: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock.New: %v", err)
			}
			defer db.Close()

			store := NewPostgresTokenStore(db, staticAnswers{2: "right"}).WithClock(clock.Now)

			mock.ExpectBegin()
			mock.ExpectQuery("FROM reset_tokens").
				WillReturnRows(sqlmock.NewRows(tokenColumns).
					AddRow("acct-1", 2, clock.Now().Add(-time.Minute), tc.expiresAt, tc.consumedAt, 5))
			if tc.wantUpdate {
				mock.ExpectExec("UPDATE reset_tokens").
					WithArgs(sqlmock.AnyArg(), 4, "tok").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			if _, err := store.ConsumeIfValid(context.Background(), "0", "tok", tc.answer); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPostgresTokenStoreConsumeNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPostgresTokenStore(db, staticAnswers{})
	mock.ExpectBegin()
	mock.ExpectQuery("FROM reset_tokens").WillReturnRows(sqlmock.NewRows(tokenColumns))
	mock.ExpectRollback()

	if _, err := store.ConsumeIfValid(context.Background(), "0", "missing", "x"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestPostgresTokenStoreSweepExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cutoff := time.Unix(1_700_000_000, 0).UTC()
	mock.ExpectExec(`DELETE FROM reset_tokens`).
		WithArgs(cutoff, 250).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := NewPostgresTokenStore(db, staticAnswers{}).SweepExpired(context.Background(), cutoff, 250)
	if err != nil {
		t.Fatalf("SweepExpired failed: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7, got %d", n)
	}
}

func TestRunMigrationsRejectsBadInput(t *testing.T) {
	if err := RunMigrations("", "up"); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	for _, direction := range []string{"", "sideways", "UP"} {
		if err := RunMigrations("postgres://localhost/test", direction); err == nil {
			t.Fatalf("expected error for direction %q", direction)
		}
	}
}

func TestMigrationFSContainsSchema(t *testing.T) {
	data, err := MigrationFS.ReadFile("migrations/000001_create_reset_tokens.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty migration")
	}
}
