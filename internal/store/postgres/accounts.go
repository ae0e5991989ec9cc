package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studentsnet/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, contact, password_hash, role, name, college, class_name, stream,
	failed_attempts, lockout_until, last_login_at, created_at`

type AccountsStore struct {
	pool *pgxpool.Pool
}

func NewAccountsStore(pool *pgxpool.Pool) *AccountsStore {
	return &AccountsStore{pool: pool}
}

func (s *AccountsStore) CreateAccount(ctx context.Context, in domain.NewAccount) (domain.Account, error) {
	const q = `
		INSERT INTO accounts (id, contact, password_hash, role, name, college, class_name, stream, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	acct, err := scanAccount(s.pool.QueryRow(ctx, q,
		in.ID,
		in.Contact,
		in.PasswordHash,
		in.Role.String(),
		nullIfEmpty(in.Profile.Name),
		nullIfEmpty(in.Profile.College),
		nullIfEmpty(in.Profile.ClassName),
		nullIfEmpty(in.Profile.Stream),
		in.CreatedAt,
	))
	if err != nil {
		return domain.Account{}, mapAccountWriteError(err)
	}
	return acct, nil
}

func (s *AccountsStore) FetchAccount(ctx context.Context, contact string) (domain.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE contact = $1`

	acct, err := scanAccount(s.pool.QueryRow(ctx, q, contact))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, domain.StoreError("fetch account", err)
	}
	return acct, nil
}

func (s *AccountsStore) UpdateLockoutState(ctx context.Context, contact string, failedAttempts int, lockoutUntil *time.Time) error {
	const q = `
		UPDATE accounts
		SET failed_attempts = $2, lockout_until = $3
		WHERE contact = $1
	`
	return s.exec(ctx, "update lockout state", q, contact, failedAttempts, timestamptzArg(lockoutUntil))
}

func (s *AccountsStore) UpdatePasswordHash(ctx context.Context, contact, passwordHash string) error {
	const q = `UPDATE accounts SET password_hash = $2 WHERE contact = $1`
	return s.exec(ctx, "update password hash", q, contact, passwordHash)
}

func (s *AccountsStore) RecordLoginSuccess(ctx context.Context, contact string, when time.Time) error {
	const q = `UPDATE accounts SET last_login_at = $2 WHERE contact = $1`
	return s.exec(ctx, "record login", q, contact, when)
}

func (s *AccountsStore) exec(ctx context.Context, op, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return domain.StoreError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var (
		a          domain.Account
		idUUID     pgtype.UUID
		role       string
		name       pgtype.Text
		college    pgtype.Text
		className  pgtype.Text
		stream     pgtype.Text
		lockoutTS  pgtype.Timestamptz
		lastLoginT pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID,
		&a.Contact,
		&a.PasswordHash,
		&role,
		&name,
		&college,
		&className,
		&stream,
		&a.FailedAttempts,
		&lockoutTS,
		&lastLoginT,
		&a.CreatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.Role, err = domain.ParseRole(role)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", a.Contact, err)
	}
	a.ID = uuidOrEmpty(idUUID)
	a.Profile = domain.Profile{
		Name:      textOrEmpty(name),
		College:   textOrEmpty(college),
		ClassName: textOrEmpty(className),
		Stream:    textOrEmpty(stream),
	}
	a.LockoutUntil = timestamptzPtr(lockoutTS)
	a.LastLoginAt = timestamptzPtr(lastLoginT)
	return a, nil
}

func mapAccountWriteError(err error) error {
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == "23505" {
		switch pgerr.ConstraintName {
		case "accounts_contact_key":
			return domain.ErrContactTaken
		default:
			return fmt.Errorf("unique violation (%s): %w", pgerr.ConstraintName, err)
		}
	}
	return domain.StoreError("create account", err)
}
