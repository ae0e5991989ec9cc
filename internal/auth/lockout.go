package auth

import (
	"context"
	"sync"
	"time"

	"studentsnet/internal/domain"
)

const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 30 * time.Minute
)

type LockoutStore interface {
	UpdateLockoutState(ctx context.Context, contact string, failedAttempts int, lockoutUntil *time.Time) error
}

type LockState int

const (
	LockOpen LockState = iota
	LockLocked
)

func (s LockState) String() string {
	if s == LockLocked {
		return "locked"
	}
	return "open"
}

type Admission int

const (
	Admitted Admission = iota
	// AdmittedAfterExpiry means the account was LOCKED, the lock had run out,
	// and the counters were reset as part of this admission.
	AdmittedAfterExpiry
	Rejected
)

// LockoutTracker runs the OPEN/LOCKED machine for each account. Admit, RecordFailure
// and RecordSuccess must be called while holding the account's lock from Acquire so
// that read-modify-write of the counters is linearized per account.
type LockoutTracker struct {
	Store       LockoutStore
	MaxAttempts int
	Duration    time.Duration
	Now         func() time.Time

	initOnce sync.Once
	locks    *keyLock
}

func (t *LockoutTracker) init() {
	t.initOnce.Do(func() {
		t.locks = newKeyLock()
		if t.MaxAttempts <= 0 {
			t.MaxAttempts = DefaultMaxFailedAttempts
		}
		if t.Duration <= 0 {
			t.Duration = DefaultLockoutDuration
		}
		if t.Now == nil {
			t.Now = time.Now
		}
	})
}

func (t *LockoutTracker) Acquire(contact string) (release func()) {
	t.init()
	return t.locks.Lock(contact)
}

func (t *LockoutTracker) State(acct domain.Account) LockState {
	t.init()
	if acct.LockoutUntil != nil && t.Now().Before(*acct.LockoutUntil) {
		return LockLocked
	}
	return LockOpen
}

func (t *LockoutTracker) Admit(ctx context.Context, acct *domain.Account) (Admission, error) {
	t.init()
	if acct.LockoutUntil == nil {
		return Admitted, nil
	}
	if t.Now().Before(*acct.LockoutUntil) {
		return Rejected, nil
	}

	if err := t.Store.UpdateLockoutState(ctx, acct.Contact, 0, nil); err != nil {
		return Rejected, err
	}
	acct.FailedAttempts = 0
	acct.LockoutUntil = nil
	return AdmittedAfterExpiry, nil
}

// RecordFailure counts one failed attempt and reports whether it moved the account to LOCKED.
func (t *LockoutTracker) RecordFailure(ctx context.Context, acct *domain.Account) (bool, error) {
	t.init()
	count := acct.FailedAttempts + 1
	var until *time.Time
	locked := false
	if count >= t.MaxAttempts {
		count = t.MaxAttempts
		u := t.Now().Add(t.Duration)
		until = &u
		locked = true
	}

	if err := t.Store.UpdateLockoutState(ctx, acct.Contact, count, until); err != nil {
		return false, err
	}
	acct.FailedAttempts = count
	acct.LockoutUntil = until
	return locked, nil
}

func (t *LockoutTracker) RecordSuccess(ctx context.Context, acct *domain.Account) error {
	t.init()
	if acct.FailedAttempts == 0 && acct.LockoutUntil == nil {
		return nil
	}
	if err := t.Store.UpdateLockoutState(ctx, acct.Contact, 0, nil); err != nil {
		return err
	}
	acct.FailedAttempts = 0
	acct.LockoutUntil = nil
	return nil
}

// Unlock clears the counters out of band, for staff intervention.
func (t *LockoutTracker) Unlock(ctx context.Context, contact string) error {
	release := t.Acquire(contact)
	defer release()
	return t.Store.UpdateLockoutState(ctx, contact, 0, nil)
}
