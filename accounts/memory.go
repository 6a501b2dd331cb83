package accounts

import (
	"context"
	"strings"
	"sync"

	goReset "github.com/MrEthical07/goReset"
)

// MemoryProvider is a process-local AccountProvider. Passwords are kept as
// hashes when a Hasher is set, otherwise verbatim.
type MemoryProvider struct {
	mu        sync.RWMutex
	hasher    Hasher
	byEmail   map[string]goReset.Account
	passwords map[string]string
}

func NewMemoryProvider(hasher Hasher) *MemoryProvider {
	return &MemoryProvider{
		hasher:    hasher,
		byEmail:   make(map[string]goReset.Account),
		passwords: make(map[string]string),
	}
}

// Add registers an account. Email matching is case-insensitive.
func (m *MemoryProvider) Add(acct goReset.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEmail[strings.ToLower(strings.TrimSpace(acct.Email))] = acct
}

func (m *MemoryProvider) ResolveAccount(_ context.Context, email string) (goReset.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct, ok := m.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return goReset.Account{}, goReset.ErrAccountNotFound
	}
	return acct, nil
}

func (m *MemoryProvider) SetPassword(_ context.Context, accountRef, newPassword string) error {
	stored := newPassword
	if m.hasher != nil {
		h, err := m.hasher.Hash(newPassword)
		if err != nil {
			return err
		}
		stored = h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.byEmail {
		if acct.Ref == accountRef {
			m.passwords[accountRef] = stored
			return nil
		}
	}
	return goReset.ErrAccountNotFound
}

// PasswordHash returns what SetPassword last stored for accountRef.
func (m *MemoryProvider) PasswordHash(accountRef string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.passwords[accountRef]
	return h, ok
}
