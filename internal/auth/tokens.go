package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"studentsnet/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	tokenVersion    = 1
)

type sessionClaims struct {
	jwt.RegisteredClaims
	Role    string `json:"role"`
	Version int    `json:"ver"`
}

// TokenIssuer mints and verifies stateless HS256 session tokens. The signing
// secret is copied at construction and never changes for the life of the process.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration, now func() time.Time) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token issuer: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	secretCopy := make([]byte, len(secret))
	copy(secretCopy, secret)
	return &TokenIssuer{secret: secretCopy, ttl: ttl, now: now}, nil
}

func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

func (t *TokenIssuer) Issue(subject string, role domain.Role) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" || !role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: %w", domain.NewValidationError(map[string]string{"subject": "required", "role": "required"}))
	}

	issuedAt := t.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(t.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:    role.String(),
		Version: tokenVersion,
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify returns domain.ErrTokenExpired once now >= expires-at and
// domain.ErrTokenInvalid for every other rejection.
func (t *TokenIssuer) Verify(tokenString string) (domain.Principal, error) {
	if tokenString == "" {
		return domain.Principal{}, domain.ErrTokenInvalid
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, domain.ErrTokenExpired
		}
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	if claims.Version != tokenVersion {
		return domain.Principal{}, fmt.Errorf("%w: unsupported version %d", domain.ErrTokenInvalid, claims.Version)
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return domain.Principal{}, fmt.Errorf("%w: missing claims", domain.ErrTokenInvalid)
	}

	return domain.Principal{
		Subject:   claims.Subject,
		Role:      role,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
