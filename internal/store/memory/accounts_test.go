package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"studentsnet/internal/domain"
)

func TestAccountsStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewAccountsStore()

	created, err := s.CreateAccount(ctx, domain.NewAccount{ID: "id-1", Contact: "9999999999", PasswordHash: "h1", Role: domain.RoleStudent})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if created.FailedAttempts != 0 || created.LockoutUntil != nil {
		t.Fatalf("expected fresh counters: %+v", created)
	}

	if _, err := s.CreateAccount(ctx, domain.NewAccount{ID: "id-2", Contact: "9999999999"}); !errors.Is(err, domain.ErrContactTaken) {
		t.Fatalf("expected contact taken, got %v", err)
	}

	until := time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC)
	if err := s.UpdateLockoutState(ctx, "9999999999", 5, &until); err != nil {
		t.Fatalf("UpdateLockoutState: %v", err)
	}
	until = until.Add(time.Hour)

	got, err := s.FetchAccount(ctx, "9999999999")
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if got.FailedAttempts != 5 || got.LockoutUntil == nil || got.LockoutUntil.Minute() != 30 || got.LockoutUntil.Hour() != 0 {
		t.Fatalf("unexpected lockout state: %+v", got)
	}

	got.LockoutUntil = nil
	again, _ := s.FetchAccount(ctx, "9999999999")
	if again.LockoutUntil == nil {
		t.Fatalf("fetched account must not alias stored state")
	}

	if err := s.UpdatePasswordHash(ctx, "9999999999", "h2"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	login := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := s.RecordLoginSuccess(ctx, "9999999999", login); err != nil {
		t.Fatalf("RecordLoginSuccess: %v", err)
	}
	got, _ = s.FetchAccount(ctx, "9999999999")
	if got.PasswordHash != "h2" || got.LastLoginAt == nil || !got.LastLoginAt.Equal(login) {
		t.Fatalf("unexpected account: %+v", got)
	}

	s.Delete("9999999999")
	if _, err := s.FetchAccount(ctx, "9999999999"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := s.UpdateLockoutState(ctx, "9999999999", 1, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
