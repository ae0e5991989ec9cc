package postgres

import (
	"errors"
	"testing"
	"time"

	"studentsnet/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestMapAccountWriteError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_contact_key"}
	if err := mapAccountWriteError(dup); !errors.Is(err, domain.ErrContactTaken) {
		t.Fatalf("expected contact taken, got %v", err)
	}

	other := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_pkey"}
	if err := mapAccountWriteError(other); errors.Is(err, domain.ErrContactTaken) || err == nil {
		t.Fatalf("unexpected mapping for %v: %v", other, err)
	}

	down := errors.New("connection reset")
	err := mapAccountWriteError(down)
	if !errors.Is(err, domain.ErrStoreUnavailable) || !errors.Is(err, down) {
		t.Fatalf("expected store unavailable wrapping cause, got %v", err)
	}
}

func TestTimestamptzArg(t *testing.T) {
	if v := timestamptzArg(nil); v.Valid {
		t.Fatalf("nil must map to NULL")
	}
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	v := timestamptzArg(&now)
	if !v.Valid || !v.Time.Equal(now) {
		t.Fatalf("unexpected value: %+v", v)
	}
	if got := timestamptzPtr(v); got == nil || !got.Equal(now) {
		t.Fatalf("round trip through timestamptzPtr failed: %v", got)
	}
}

func TestUUIDOrEmpty(t *testing.T) {
	if got := uuidOrEmpty(pgtype.UUID{}); got != "" {
		t.Fatalf("NULL uuid must map to empty, got %q", got)
	}
	id := uuid.MustParse("6f1c2a3b-4d5e-4f60-8a7b-9c0d1e2f3a4b")
	if got := uuidOrEmpty(pgtype.UUID{Bytes: id, Valid: true}); got != id.String() {
		t.Fatalf("uuidOrEmpty = %q, want %q", got, id.String())
	}
}
