package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	goReset "github.com/MrEthical07/goReset"
)

// Hasher turns a plaintext password into a storable encoding.
// *password.Argon2 implements it.
type Hasher interface {
	Hash(password string) (string, error)
}

const (
	selectAccountByEmail = `SELECT id FROM users WHERE lower(email) = lower($1)`
	updatePasswordHash   = `UPDATE users SET password_hash = $1 WHERE id = $2`
)

var ErrProviderUnavailable = errors.New("account store unavailable")

// SQLProvider reads and updates a users(id, email, password_hash) table.
type SQLProvider struct {
	db     *sql.DB
	hasher Hasher
}

func NewSQLProvider(db *sql.DB, hasher Hasher) *SQLProvider {
	return &SQLProvider{db: db, hasher: hasher}
}

func (p *SQLProvider) ResolveAccount(ctx context.Context, email string) (goReset.Account, error) {
	email = strings.TrimSpace(email)

	var id string
	err := p.db.QueryRowContext(ctx, selectAccountByEmail, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return goReset.Account{}, goReset.ErrAccountNotFound
	}
	if err != nil {
		return goReset.Account{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return goReset.Account{
		Ref:   id,
		Email: email,
	}, nil
}

// SetPassword hashes newPassword and writes it. A missing row is reported
// as goReset.ErrAccountNotFound.
func (p *SQLProvider) SetPassword(ctx context.Context, accountRef, newPassword string) error {
	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, updatePasswordHash, hash, accountRef)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if n == 0 {
		return goReset.ErrAccountNotFound
	}
	return nil
}
