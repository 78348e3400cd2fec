package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"mail-auth/internal/domain"
)

const tokenIssuer = "mail-auth"

// TokenService emite y valida tokens de sesion firmados con HMAC. Las
// sesiones no se persisten: la validez se recalcula del token y el secreto,
// salvo los jti revocados que guarda el denylist hasta su expiracion.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	denylist SessionDenylist
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		issuer:   tokenIssuer,
		denylist: NewMemorySessionDenylist(),
	}
}

func NewTokenServiceWithDenylist(secret string, lifetime time.Duration, denylist SessionDenylist) *TokenService {
	svc := NewTokenService(secret, lifetime)
	if denylist != nil {
		svc.denylist = denylist
	}
	return svc
}

// Issue firma un token que liga {email, iat, exp}. Cualquier alteracion de
// los claims invalida la firma.
func (s *TokenService) Issue(emailAddr string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrBadSignature
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   emailAddr,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate recalcula la firma sobre el payload y devuelve la identidad
// ligada, o el error correspondiente (firma, expiracion, revocacion).
func (s *TokenService) Validate(tokenString string) (domain.Identity, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return domain.Identity{}, err
	}
	if claims.ID != "" && s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(claims.ID)
		if err != nil {
			// Sin denylist no se puede descartar una revocacion: se
			// rechaza en lugar de validar un token posiblemente revocado.
			return domain.Identity{}, storageErr(err)
		}
		if revoked {
			return domain.Identity{}, ErrTokenRevoked
		}
	}
	return domain.Identity{
		Email:     claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke agrega el jti del token al denylist hasta su expiracion natural.
func (s *TokenService) Revoke(tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}
	if claims.ID == "" || s.denylist == nil {
		return ErrBadSignature
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return ErrTokenExpired
	}
	return s.denylist.Revoke(claims.ID, ttl)
}

// Lifetime expone la duracion configurada de los tokens.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

func (s *TokenService) parse(tokenString string) (sessionClaims, error) {
	if len(s.secret) == 0 {
		return sessionClaims{}, ErrBadSignature
	}
	if strings.TrimSpace(tokenString) == "" {
		return sessionClaims{}, ErrBadSignature
	}
	var claims sessionClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return sessionClaims{}, ErrTokenExpired
		}
		return sessionClaims{}, ErrBadSignature
	}
	if !s.validClaims(claims) {
		return sessionClaims{}, ErrBadSignature
	}
	return claims, nil
}

func (s *TokenService) validClaims(claims sessionClaims) bool {
	if strings.TrimSpace(claims.Subject) == "" {
		return false
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return false
	}
	return strings.TrimSpace(claims.Issuer) == s.issuer
}
