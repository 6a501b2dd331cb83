package accounts

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/password"
)

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func TestSQLProviderResolveAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("Alice@Example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(`SELECT id FROM users`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	p := NewSQLProvider(db, newTestHasher(t))

	acct, err := p.ResolveAccount(context.Background(), " Alice@Example.com ")
	if err != nil {
		t.Fatalf("ResolveAccount failed: %v", err)
	}
	if acct.Ref != "u1" || acct.Email != "Alice@Example.com" {
		t.Fatalf("unexpected account %+v", acct)
	}

	if _, err := p.ResolveAccount(context.Background(), "nobody@example.com"); !errors.Is(err, goReset.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLProviderResolveAccountBackendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM users`).WillReturnError(errors.New("conn refused"))

	p := NewSQLProvider(db, newTestHasher(t))
	if _, err := p.ResolveAccount(context.Background(), "a@example.com"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSQLProviderSetPasswordStoresArgon2Hash(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	hasher := newTestHasher(t)
	var stored string
	mock.ExpectExec(`UPDATE users SET password_hash = \$1 WHERE id = \$2`).
		WithArgs(hashArg{hasher: hasher, password: "correct-horse-battery", out: &stored}, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET password_hash`).
		WithArgs(sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	p := NewSQLProvider(db, hasher)
	if err := p.SetPassword(context.Background(), "u1", "correct-horse-battery"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if stored == "correct-horse-battery" {
		t.Fatal("plaintext password stored")
	}
	if err := p.SetPassword(context.Background(), "ghost", "correct-horse-battery"); !errors.Is(err, goReset.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLProviderSetPasswordRejectsShortPassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	p := NewSQLProvider(db, newTestHasher(t))
	if err := p.SetPassword(context.Background(), "u1", "short"); err == nil {
		t.Fatal("expected hash error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no statement should run: %v", err)
	}
}

// hashArg matches an argument that verifies against password.
type hashArg struct {
	hasher   *password.Argon2
	password string
	out      *string
}

func (a hashArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	*a.out = s
	match, err := a.hasher.Verify(a.password, s)
	return err == nil && match
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider(newTestHasher(t))
	p.Add(goReset.Account{Ref: "u1", TenantID: "0", Email: "Alice@Example.com"})

	acct, err := p.ResolveAccount(context.Background(), "alice@example.com")
	if err != nil || acct.Ref != "u1" {
		t.Fatalf("ResolveAccount = %+v, %v", acct, err)
	}
	if _, err := p.ResolveAccount(context.Background(), "bob@example.com"); !errors.Is(err, goReset.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	if err := p.SetPassword(context.Background(), "u1", "correct-horse-battery"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	h, ok := p.PasswordHash("u1")
	if !ok || h == "correct-horse-battery" {
		t.Fatalf("expected hashed password, got %q", h)
	}
	if err := p.SetPassword(context.Background(), "u9", "correct-horse-battery"); !errors.Is(err, goReset.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
