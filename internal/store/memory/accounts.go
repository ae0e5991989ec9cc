// Package memory is an in-process credential store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"studentsnet/internal/domain"
)

type AccountsStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

func NewAccountsStore() *AccountsStore {
	return &AccountsStore{accounts: make(map[string]domain.Account)}
}

func (s *AccountsStore) CreateAccount(_ context.Context, in domain.NewAccount) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[in.Contact]; ok {
		return domain.Account{}, domain.ErrContactTaken
	}
	acct := domain.Account{
		ID:           in.ID,
		Contact:      in.Contact,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Profile:      in.Profile,
		CreatedAt:    in.CreatedAt,
	}
	s.accounts[in.Contact] = acct
	return clone(acct), nil
}

func (s *AccountsStore) FetchAccount(_ context.Context, contact string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[contact]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return clone(acct), nil
}

func (s *AccountsStore) UpdateLockoutState(_ context.Context, contact string, failedAttempts int, lockoutUntil *time.Time) error {
	return s.update(contact, func(a *domain.Account) {
		a.FailedAttempts = failedAttempts
		a.LockoutUntil = timePtr(lockoutUntil)
	})
}

func (s *AccountsStore) UpdatePasswordHash(_ context.Context, contact, passwordHash string) error {
	return s.update(contact, func(a *domain.Account) {
		a.PasswordHash = passwordHash
	})
}

func (s *AccountsStore) RecordLoginSuccess(_ context.Context, contact string, when time.Time) error {
	return s.update(contact, func(a *domain.Account) {
		a.LastLoginAt = &when
	})
}

// Delete drops the record and with it the lockout counters.
func (s *AccountsStore) Delete(contact string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, contact)
}

func (s *AccountsStore) update(contact string, fn func(*domain.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[contact]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&acct)
	s.accounts[contact] = acct
	return nil
}

func clone(a domain.Account) domain.Account {
	a.LockoutUntil = timePtr(a.LockoutUntil)
	a.LastLoginAt = timePtr(a.LastLoginAt)
	return a
}

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tt := *t
	return &tt
}
