package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"studentsnet/internal/domain"

	"github.com/stretchr/testify/require"
)

type lockoutWrite struct {
	contact string
	count   int
	until   *time.Time
}

type recordingLockoutStore struct {
	mu     sync.Mutex
	writes []lockoutWrite
	err    error
}

func (s *recordingLockoutStore) UpdateLockoutState(_ context.Context, contact string, count int, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, lockoutWrite{contact: contact, count: count, until: until})
	return nil
}

func TestLockoutTransitions(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := &recordingLockoutStore{}
	tracker := &LockoutTracker{Store: store, Now: clock.Now}

	acct := &domain.Account{Contact: "9999999999"}
	for i := 1; i <= 4; i++ {
		adm, err := tracker.Admit(ctx, acct)
		require.NoError(t, err)
		require.Equal(t, Admitted, adm)

		locked, err := tracker.RecordFailure(ctx, acct)
		require.NoError(t, err)
		require.False(t, locked)
		require.Equal(t, i, acct.FailedAttempts)
		require.Nil(t, acct.LockoutUntil)
	}

	locked, err := tracker.RecordFailure(ctx, acct)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 5, acct.FailedAttempts)
	require.NotNil(t, acct.LockoutUntil)
	require.Equal(t, clock.now.Add(30*time.Minute), *acct.LockoutUntil)
	require.Equal(t, LockLocked, tracker.State(*acct))

	clock.Advance(29 * time.Minute)
	adm, err := tracker.Admit(ctx, acct)
	require.NoError(t, err)
	require.Equal(t, Rejected, adm)

	clock.Advance(time.Minute)
	require.Equal(t, LockOpen, tracker.State(*acct))
	adm, err = tracker.Admit(ctx, acct)
	require.NoError(t, err)
	require.Equal(t, AdmittedAfterExpiry, adm)
	require.Equal(t, 0, acct.FailedAttempts)
	require.Nil(t, acct.LockoutUntil)

	last := store.writes[len(store.writes)-1]
	require.Equal(t, 0, last.count)
	require.Nil(t, last.until)
}

func TestLockoutSuccessResets(t *testing.T) {
	ctx := context.Background()
	store := &recordingLockoutStore{}
	tracker := &LockoutTracker{Store: store}

	acct := &domain.Account{Contact: "9999999999", FailedAttempts: 3}
	require.NoError(t, tracker.RecordSuccess(ctx, acct))
	require.Equal(t, 0, acct.FailedAttempts)
	require.Len(t, store.writes, 1)

	require.NoError(t, tracker.RecordSuccess(ctx, acct))
	require.Len(t, store.writes, 1, "clean account should not be rewritten")
}

func TestLockoutStoreFailureLeavesAccountUntouched(t *testing.T) {
	ctx := context.Background()
	store := &recordingLockoutStore{err: errors.New("boom")}
	tracker := &LockoutTracker{Store: store}

	acct := &domain.Account{Contact: "9999999999", FailedAttempts: 2}
	_, err := tracker.RecordFailure(ctx, acct)
	require.Error(t, err)
	require.Equal(t, 2, acct.FailedAttempts)
}

func TestLockoutCustomLimits(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	tracker := &LockoutTracker{Store: &recordingLockoutStore{}, MaxAttempts: 2, Duration: time.Minute, Now: clock.Now}

	acct := &domain.Account{Contact: "1111111111"}
	locked, err := tracker.RecordFailure(ctx, acct)
	require.NoError(t, err)
	require.False(t, locked)
	locked, err = tracker.RecordFailure(ctx, acct)
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, clock.now.Add(time.Minute), *acct.LockoutUntil)
}

func TestLockoutUnlock(t *testing.T) {
	store := &recordingLockoutStore{}
	tracker := &LockoutTracker{Store: store}
	require.NoError(t, tracker.Unlock(context.Background(), "9999999999"))
	require.Equal(t, []lockoutWrite{{contact: "9999999999"}}, store.writes)
}

func TestKeyLockSerializesAndForgets(t *testing.T) {
	kl := newKeyLock()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := kl.Lock("acct")
			defer release()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, maxSeen)
	require.Equal(t, 0, kl.Len())
}
