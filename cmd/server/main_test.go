package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"studentsnet/internal/auth"
	"studentsnet/internal/domain"
	"studentsnet/internal/store/memory"
)

func TestBootstrapOwner(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewAccountsStore()
	hasher := auth.NewPasswordHasher(auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1})

	if err := bootstrapOwner(ctx, logger, store, hasher, "", ""); err != nil {
		t.Fatalf("no password must be a no-op, got %v", err)
	}

	if err := bootstrapOwner(ctx, logger, store, hasher, "9000000000", "short"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for weak password, got %v", err)
	}

	if err := bootstrapOwner(ctx, logger, store, hasher, "9000000000", "ownerpass1"); err != nil {
		t.Fatalf("bootstrapOwner: %v", err)
	}
	acct, err := store.FetchAccount(ctx, "9000000000")
	if err != nil {
		t.Fatalf("FetchAccount: %v", err)
	}
	if acct.Role != domain.RoleOwner || !hasher.Verify("ownerpass1", acct.PasswordHash) {
		t.Fatalf("unexpected owner account: %+v", acct)
	}

	if err := bootstrapOwner(ctx, logger, store, hasher, "9000000000", "differentpass2"); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	again, _ := store.FetchAccount(ctx, "9000000000")
	if again.PasswordHash != acct.PasswordHash {
		t.Fatalf("existing owner must not be overwritten")
	}

	if err := bootstrapOwner(ctx, logger, store, hasher, "", "ownerpass1"); err == nil {
		t.Fatalf("expected error without contact")
	}
	if err := bootstrapOwner(ctx, logger, store, hasher, "owner@example.com", "ownerpass1"); err == nil {
		t.Fatalf("expected error for a non-phone contact")
	}
}

func TestBootstrapOwnerNormalizesContact(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewAccountsStore()
	hasher := auth.NewPasswordHasher(auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1})

	if err := bootstrapOwner(ctx, logger, store, hasher, "+91 99999 99999", "ownerpass1"); err != nil {
		t.Fatalf("bootstrapOwner: %v", err)
	}
	acct, err := store.FetchAccount(ctx, "919999999999")
	if err != nil {
		t.Fatalf("owner must be stored under the normalized contact: %v", err)
	}
	if acct.Role != domain.RoleOwner {
		t.Fatalf("unexpected owner account: %+v", acct)
	}
}
