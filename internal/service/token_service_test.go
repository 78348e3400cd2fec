package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenService_IssueValidate(t *testing.T) {
	svc := NewTokenService("secret", 24*time.Hour)

	token, err := svc.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	identity, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if identity.Email != "user@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if got := identity.ExpiresAt.Sub(identity.IssuedAt); got != 24*time.Hour {
		t.Fatalf("expected 24h lifetime, got %v", got)
	}
}

func TestTokenService_ExpiredToken(t *testing.T) {
	svc := NewTokenService("secret", 24*time.Hour)

	// Token valido hasta hace un segundo, firmado con el mismo secreto.
	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    tokenIssuer,
			Subject:   "user@example.com",
			IssuedAt:  jwt.NewNumericDate(now.Add(-24*time.Hour - time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Second)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Validate(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenService_AlmostExpiredStillValid(t *testing.T) {
	svc := NewTokenService("secret", 24*time.Hour)

	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-2",
			Issuer:    tokenIssuer,
			Subject:   "user@example.com",
			IssuedAt:  jwt.NewNumericDate(now.Add(-23*time.Hour - 59*time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Validate(signed); err != nil {
		t.Fatalf("expected token still valid, got %v", err)
	}
}

func TestTokenService_TamperedSignature(t *testing.T) {
	svc := NewTokenService("secret", 24*time.Hour)

	token, err := svc.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := svc.Validate(tampered); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestTokenService_TamperedClaims(t *testing.T) {
	svc := NewTokenService("secret", 24*time.Hour)

	token, err := svc.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewTokenService("othersecret", 24*time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for wrong secret, got %v", err)
	}
}

func TestTokenService_WrongIssuer(t *testing.T) {
	svc := NewTokenService("secret", 24*time.Hour)

	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-3",
			Issuer:    "other-issuer",
			Subject:   "user@example.com",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := svc.Validate(signed); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for wrong issuer, got %v", err)
	}
}

func TestTokenService_RevokeDenylistsJTI(t *testing.T) {
	svc := NewTokenServiceWithDenylist("secret", 24*time.Hour, NewMemorySessionDenylist())

	token, err := svc.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Validate(token); err != nil {
		t.Fatalf("validate before revoke: %v", err)
	}

	if err := svc.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Validate(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	// Otros tokens del mismo usuario siguen siendo validos.
	fresh, err := svc.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Validate(fresh); err != nil {
		t.Fatalf("fresh token should validate: %v", err)
	}
}

type failingDenylist struct {
	err error
}

func (d *failingDenylist) Revoke(_ string, _ time.Duration) error {
	return d.err
}

func (d *failingDenylist) IsRevoked(_ string) (bool, error) {
	return false, d.err
}

func TestTokenService_DenylistFailureFailsClosed(t *testing.T) {
	svc := NewTokenServiceWithDenylist("secret", 24*time.Hour, &failingDenylist{err: errors.New("redis down")})

	token, err := svc.Issue("user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Con el denylist caido no se puede descartar una revocacion.
	if _, err := svc.Validate(token); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestTokenService_RejectsEmptySecret(t *testing.T) {
	svc := NewTokenService("", 24*time.Hour)
	if _, err := svc.Issue("user@example.com"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature on empty secret, got %v", err)
	}
	if _, err := svc.Validate("whatever"); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature on empty secret, got %v", err)
	}
}
