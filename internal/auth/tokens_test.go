package auth

import (
	"testing"
	"time"

	"studentsnet/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestIssuer(t *testing.T, clock *fakeClock) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), DefaultTokenTTL, clock.Now)
	require.NoError(t, err)
	return issuer
}

func TestTokenRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	tok, expiresAt, err := issuer.Issue("9999999999", domain.RoleStaff)
	require.NoError(t, err)
	require.Equal(t, clock.now.Add(24*time.Hour), expiresAt)

	p, err := issuer.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "9999999999", p.Subject)
	require.Equal(t, domain.RoleStaff, p.Role)
	require.Equal(t, clock.now, p.IssuedAt.UTC())
	require.Equal(t, expiresAt, p.ExpiresAt.UTC())
}

func TestTokenExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	tok, _, err := issuer.Issue("9999999999", domain.RoleStudent)
	require.NoError(t, err)

	clock.Advance(24*time.Hour - time.Second)
	_, err = issuer.Verify(tok)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = issuer.Verify(tok)
	require.ErrorIs(t, err, domain.ErrTokenExpired)

	clock.Advance(72 * time.Hour)
	_, err = issuer.Verify(tok)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)
	other, err := NewTokenIssuer([]byte("another-secret-another-secret-xx"), DefaultTokenTTL, clock.Now)
	require.NoError(t, err)

	tok, _, err := other.Issue("9999999999", domain.RoleStudent)
	require.NoError(t, err)

	_, err = issuer.Verify(tok)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenTamperedAndMalformed(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := newTestIssuer(t, clock)

	tok, _, err := issuer.Issue("9999999999", domain.RoleStudent)
	require.NoError(t, err)

	for _, bad := range []string{"", "not.a.jwt", "abc", tok + "x", tok[:len(tok)-4]} {
		_, err := issuer.Verify(bad)
		require.ErrorIs(t, err, domain.ErrTokenInvalid, "token %q", bad)
	}
}

func TestTokenExpiredButTamperedIsInvalid(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	tok, _, err := issuer.Issue("9999999999", domain.RoleStudent)
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, err = issuer.Verify(tok + "x")
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenRejectsUnsupportedVersionAndRole(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	sign := func(c sessionClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(issuer.secret)
		require.NoError(t, err)
		return s
	}
	base := jwt.RegisteredClaims{
		Subject:   "9999999999",
		IssuedAt:  jwt.NewNumericDate(clock.now),
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}

	_, err := issuer.Verify(sign(sessionClaims{RegisteredClaims: base, Role: "student", Version: 2}))
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = issuer.Verify(sign(sessionClaims{RegisteredClaims: base, Role: "admin", Version: tokenVersion}))
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	noExp := base
	noExp.ExpiresAt = nil
	_, err = issuer.Verify(sign(sessionClaims{RegisteredClaims: noExp, Role: "student", Version: tokenVersion}))
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenRejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	issuer := newTestIssuer(t, clock)

	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "9999999999",
			IssuedAt:  jwt.NewNumericDate(clock.now),
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
		Role:    "owner",
		Version: tokenVersion,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS512, c).SignedString(issuer.secret)
	require.NoError(t, err)

	_, err = issuer.Verify(s)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestTokenIssueRequiresSubjectAndRole(t *testing.T) {
	issuer := newTestIssuer(t, &fakeClock{now: time.Now()})

	_, _, err := issuer.Issue("", domain.RoleStudent)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = issuer.Issue("9999999999", domain.RoleUnknown)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	_, err := NewTokenIssuer(nil, time.Hour, nil)
	require.Error(t, err)
}
