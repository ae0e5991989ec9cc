package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"studentsnet/internal/auth"
	"studentsnet/internal/domain"

	"github.com/google/uuid"
)

type AccountsStore interface {
	CreateAccount(ctx context.Context, acct domain.NewAccount) (domain.Account, error)
	FetchAccount(ctx context.Context, contact string) (domain.Account, error)
	UpdateLockoutState(ctx context.Context, contact string, failedAttempts int, lockoutUntil *time.Time) error
	UpdatePasswordHash(ctx context.Context, contact, passwordHash string) error
	RecordLoginSuccess(ctx context.Context, contact string, when time.Time) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
	NeedsRehash(digest string) bool
}

type TokenIssuer interface {
	Issue(subject string, role domain.Role) (string, time.Time, error)
	Verify(token string) (domain.Principal, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, ev domain.AuditEvent)
}

type AuthService struct {
	Accounts AccountsStore
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Lockout  *auth.LockoutTracker
	Audit    AuditRecorder
	Now      func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   domain.Account
}

type RegisterInput struct {
	Contact  string
	Password string
	Profile  domain.Profile
}

func (s *AuthService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *AuthService) record(ctx context.Context, category domain.AuditCategory, subject, clientIP, detail string) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Timestamp: s.now().UTC(),
		Category:  category,
		Subject:   subject,
		ClientIP:  clientIP,
		Detail:    detail,
	})
}

// dummy returns a digest to verify against when the identity does not exist,
// so unknown and known identities cost the same hashing work.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.Hasher.Hash("unknown-account-0")
	})
	return s.dummyDigest
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, clientIP string) (Session, error) {
	in.Contact = strings.TrimSpace(in.Contact)
	fields := map[string]string{}
	if in.Contact == "" {
		fields["contact"] = "required"
	}
	var verr *domain.ValidationError
	if err := auth.ValidatePassword(in.Password); errors.As(err, &verr) {
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return Session{}, domain.NewValidationError(fields)
	}

	passwordHash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	acct, err := s.Accounts.CreateAccount(ctx, domain.NewAccount{
		ID:           uuid.NewString(),
		Contact:      in.Contact,
		PasswordHash: passwordHash,
		Role:         domain.RoleStudent,
		Profile:      in.Profile,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return Session{}, err
	}

	token, expiresAt, err := s.Tokens.Issue(acct.Contact, acct.Role)
	if err != nil {
		return Session{}, err
	}

	s.record(ctx, domain.AuditRegistered, acct.Contact, clientIP, "account created")
	return Session{Token: token, ExpiresAt: expiresAt, Account: acct}, nil
}

// Login authenticates contact+password. Every failure the caller may see is
// domain.ErrInvalidCredentials, except infrastructure failures (ErrStoreUnavailable)
// and malformed input (ErrValidation).
func (s *AuthService) Login(ctx context.Context, contact, password, clientIP string) (Session, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" || password == "" {
		s.record(ctx, domain.AuditLoginFailed, contact, clientIP, "malformed credentials")
		return Session{}, domain.NewValidationError(map[string]string{"contact": "required", "password": "required"})
	}

	release := s.Lockout.Acquire(contact)
	defer release()

	acct, err := s.Accounts.FetchAccount(ctx, contact)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.Hasher.Verify(password, s.dummy())
			s.record(ctx, domain.AuditLoginFailed, domain.AuditSubjectUnknown, clientIP, "unknown identity")
			return Session{}, domain.ErrInvalidCredentials
		}
		s.record(ctx, domain.AuditLoginFailed, contact, clientIP, "credential store unavailable")
		return Session{}, err
	}

	if err := s.checkSecret(ctx, &acct, password, clientIP, "login"); err != nil {
		return Session{}, err
	}

	now := s.now()
	if err := s.Accounts.RecordLoginSuccess(ctx, acct.Contact, now); err != nil {
		return Session{}, s.writeFailed(ctx, acct.Contact, clientIP, "login: credential store unavailable", err)
	}
	acct.LastLoginAt = &now

	if s.Hasher.NeedsRehash(acct.PasswordHash) {
		if digest, err := s.Hasher.Hash(password); err == nil {
			if err := s.Accounts.UpdatePasswordHash(ctx, acct.Contact, digest); err == nil {
				acct.PasswordHash = digest
			}
		}
	}

	token, expiresAt, err := s.Tokens.Issue(acct.Contact, acct.Role)
	if err != nil {
		s.record(ctx, domain.AuditLoginFailed, acct.Contact, clientIP, "token issuance failed")
		return Session{}, err
	}

	s.record(ctx, domain.AuditLoginSuccess, acct.Contact, clientIP, "")
	return Session{Token: token, ExpiresAt: expiresAt, Account: acct}, nil
}

// checkSecret runs one attempt through the lockout machine. The caller must hold
// the account's lock. On success the counters are cleared; on any failure exactly
// one LOGIN_FAILED event is recorded, plus LOCKOUT when this attempt locked the account.
func (s *AuthService) checkSecret(ctx context.Context, acct *domain.Account, password, clientIP, action string) error {
	adm, err := s.Lockout.Admit(ctx, acct)
	if err != nil {
		return s.writeFailed(ctx, acct.Contact, clientIP, action+": credential store unavailable", err)
	}
	switch adm {
	case auth.Rejected:
		s.record(ctx, domain.AuditLoginFailed, acct.Contact, clientIP,
			fmt.Sprintf("%s: account locked until %s", action, acct.LockoutUntil.UTC().Format(time.RFC3339)))
		return domain.ErrInvalidCredentials
	case auth.AdmittedAfterExpiry:
		s.record(ctx, domain.AuditLockoutCleared, acct.Contact, clientIP, "lockout expired")
	case auth.Admitted:
	}

	if !s.Hasher.Verify(password, acct.PasswordHash) {
		locked, err := s.Lockout.RecordFailure(ctx, acct)
		if err != nil {
			return s.writeFailed(ctx, acct.Contact, clientIP, action+": wrong password, counter update failed", err)
		}
		s.record(ctx, domain.AuditLoginFailed, acct.Contact, clientIP,
			fmt.Sprintf("%s: wrong password (attempt %d/%d)", action, acct.FailedAttempts, s.Lockout.MaxAttempts))
		if locked {
			s.record(ctx, domain.AuditLockout, acct.Contact, clientIP,
				fmt.Sprintf("locked until %s", acct.LockoutUntil.UTC().Format(time.RFC3339)))
		}
		return domain.ErrInvalidCredentials
	}

	if err := s.Lockout.RecordSuccess(ctx, acct); err != nil {
		return s.writeFailed(ctx, acct.Contact, clientIP, action+": credential store unavailable", err)
	}
	return nil
}

// writeFailed records a LOGIN_FAILED for a store write that failed mid-attempt.
// An account removed since it was fetched is reported as bad credentials.
func (s *AuthService) writeFailed(ctx context.Context, contact, clientIP, detail string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		s.record(ctx, domain.AuditLoginFailed, contact, clientIP, "account removed during attempt")
		return domain.ErrInvalidCredentials
	}
	s.record(ctx, domain.AuditLoginFailed, contact, clientIP, detail)
	return err
}

// Authenticate verifies a bearer token. It never touches the credential store.
func (s *AuthService) Authenticate(ctx context.Context, token, clientIP string) (domain.Principal, error) {
	p, err := s.Tokens.Verify(token)
	if err != nil {
		detail := "invalid token"
		switch {
		case token == "":
			detail = "missing token"
		case errors.Is(err, domain.ErrTokenExpired):
			detail = "expired token"
		}
		s.record(ctx, domain.AuditTokenRejected, domain.AuditSubjectUnknown, clientIP, detail)
		if errors.Is(err, domain.ErrTokenExpired) {
			return domain.Principal{}, domain.ErrTokenExpired
		}
		return domain.Principal{}, domain.ErrTokenInvalid
	}
	return p, nil
}

func (s *AuthService) Profile(ctx context.Context, p domain.Principal) (domain.Account, error) {
	acct, err := s.Accounts.FetchAccount(ctx, p.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, domain.ErrUnauthorized
		}
		return domain.Account{}, err
	}
	return acct, nil
}

// ChangePassword treats the current-password check as an authentication attempt.
// Tokens issued before the change stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, p domain.Principal, current, next, clientIP string) error {
	if err := auth.ValidatePassword(next); err != nil {
		return err
	}
	if current == "" {
		return domain.NewValidationError(map[string]string{"current_password": "required"})
	}

	release := s.Lockout.Acquire(p.Subject)
	defer release()

	acct, err := s.Accounts.FetchAccount(ctx, p.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnauthorized
		}
		return err
	}

	if err := s.checkSecret(ctx, &acct, current, clientIP, "password change"); err != nil {
		return err
	}

	digest, err := s.Hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.Accounts.UpdatePasswordHash(ctx, acct.Contact, digest); err != nil {
		return err
	}

	s.record(ctx, domain.AuditPasswordChanged, acct.Contact, clientIP, "")
	return nil
}

func (s *AuthService) UnlockAccount(ctx context.Context, actor domain.Principal, contact, clientIP string) error {
	if !actor.Role.CanManageAccounts() {
		s.record(ctx, domain.AuditAccessDenied, actor.Subject, clientIP, "unlock requires staff or owner role")
		return domain.ErrForbidden
	}

	contact = strings.TrimSpace(contact)
	if _, err := s.Accounts.FetchAccount(ctx, contact); err != nil {
		return err
	}
	if err := s.Lockout.Unlock(ctx, contact); err != nil {
		return err
	}

	s.record(ctx, domain.AuditLockoutCleared, contact, clientIP, "unlocked by "+actor.Subject)
	return nil
}
