package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mail-auth/internal/domain"
	"mail-auth/internal/email"
	"mail-auth/internal/repository"
)

const (
	defaultOTPTTL         = 10 * time.Minute
	defaultOTPMaxAttempts = 5
	minPasswordLength     = 6
)

// OTPService gestiona el ciclo de vida de los registros pendientes: emite
// codigos de un solo uso, los verifica y promueve el registro a User.
// Las mutaciones se serializan por email para que la promocion ocurra
// exactamente una vez bajo verificaciones concurrentes.
type OTPService struct {
	logger      *zap.Logger
	users       repository.UserRepository
	pending     repository.PendingRepository
	hasher      *PasswordHasher
	sender      email.Sender
	limiter     OTPRateLimiter
	ttl         time.Duration
	maxAttempts int
	locks       keyedMutex
}

func NewOTPService(
	logger *zap.Logger,
	users repository.UserRepository,
	pending repository.PendingRepository,
	hasher *PasswordHasher,
	sender email.Sender,
	limiter OTPRateLimiter,
	ttl time.Duration,
	maxAttempts int,
) *OTPService {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultOTPMaxAttempts
	}
	if limiter == nil {
		limiter = NewOTPRateLimiter(ttl, 3)
	}
	return &OTPService{
		logger:      logger,
		users:       users,
		pending:     pending,
		hasher:      hasher,
		sender:      sender,
		limiter:     limiter,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Issue crea (o reemplaza) el registro pendiente para email y despacha el
// codigo por correo. Un fallo de entrega se reporta como ErrDeliveryFailed
// pero el registro pendiente queda creado; el llamador puede pedir Resend.
func (s *OTPService) Issue(ctx context.Context, emailAddr, password string) (domain.PendingRegistration, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !isValidEmail(emailAddr) {
		return domain.PendingRegistration{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return domain.PendingRegistration{}, ErrWeakPassword
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return domain.PendingRegistration{}, ErrRateLimited
	}

	unlock := s.locks.lock(emailAddr)
	defer unlock()

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return domain.PendingRegistration{}, ErrDuplicateUser
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.PendingRegistration{}, storageErr(err)
	}

	digest, salt, err := s.hasher.Hash(password)
	if err != nil {
		return domain.PendingRegistration{}, err
	}
	code, codeHash, err := generateOTP()
	if err != nil {
		return domain.PendingRegistration{}, err
	}

	now := time.Now().UTC()
	pending := domain.PendingRegistration{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: digest,
		Salt:         salt,
		CodeHash:     codeHash,
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return domain.PendingRegistration{}, storageErr(err)
	}

	if err := s.dispatch(ctx, emailAddr, code, pending.ExpiresAt); err != nil {
		return pending, err
	}
	return pending, nil
}

// Verify comprueba el codigo y, si coincide, promueve el registro
// pendiente a User de forma atomica. Un mismatch no purga el registro;
// superar el limite de intentos o expirar si lo hace.
func (s *OTPService) Verify(ctx context.Context, emailAddr, code string) (domain.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}

	unlock := s.locks.lock(emailAddr)
	defer unlock()

	pending, err := s.pending.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, s.missingPendingErr(ctx, emailAddr)
		}
		return domain.User{}, storageErr(err)
	}

	if time.Now().UTC().After(pending.ExpiresAt) {
		if err := s.pending.Delete(ctx, emailAddr); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, storageErr(err)
		}
		return domain.User{}, ErrOTPExpired
	}

	if !isValidOTPCode(code) || !verifyOTPCode(code, pending.CodeHash) {
		pending.Attempts++
		if pending.Attempts >= s.maxAttempts {
			if err := s.pending.Delete(ctx, emailAddr); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return domain.User{}, storageErr(err)
			}
			return domain.User{}, ErrTooManyAttempts
		}
		if err := s.pending.Upsert(ctx, pending); err != nil {
			return domain.User{}, storageErr(err)
		}
		return domain.User{}, ErrCodeMismatch
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: pending.PasswordHash,
		Salt:         pending.Salt,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			_ = s.pending.Delete(ctx, emailAddr)
			return domain.User{}, ErrAlreadyConfirmed
		}
		return domain.User{}, storageErr(err)
	}
	if err := s.pending.Delete(ctx, emailAddr); err != nil && !errors.Is(err, repository.ErrNotFound) {
		if s.logger != nil {
			s.logger.Warn("pending purge after promotion failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}
	return user, nil
}

// Resend regenera codigo y expiracion para un registro pendiente sin
// volver a pedir la contraseña; el codigo anterior queda invalidado.
func (s *OTPService) Resend(ctx context.Context, emailAddr string) (domain.PendingRegistration, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.PendingRegistration{}, ErrInvalidEmail
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return domain.PendingRegistration{}, ErrRateLimited
	}

	unlock := s.locks.lock(emailAddr)
	defer unlock()

	pending, err := s.pending.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PendingRegistration{}, s.missingPendingErr(ctx, emailAddr)
		}
		return domain.PendingRegistration{}, storageErr(err)
	}

	code, codeHash, err := generateOTP()
	if err != nil {
		return domain.PendingRegistration{}, err
	}
	pending.CodeHash = codeHash
	pending.Attempts = 0
	pending.ExpiresAt = time.Now().UTC().Add(s.ttl)
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return domain.PendingRegistration{}, storageErr(err)
	}

	if err := s.dispatch(ctx, emailAddr, code, pending.ExpiresAt); err != nil {
		return pending, err
	}
	return pending, nil
}

func (s *OTPService) dispatch(ctx context.Context, emailAddr, code string, expiresAt time.Time) error {
	if s.sender == nil {
		return ErrDeliveryFailed
	}
	if err := s.sender.SendOTP(ctx, emailAddr, code, expiresAt); err != nil {
		if s.logger != nil {
			s.logger.Warn("otp dispatch failed", zap.Error(err), zap.String("email", emailAddr))
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func (s *OTPService) missingPendingErr(ctx context.Context, emailAddr string) error {
	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return ErrAlreadyConfirmed
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return storageErr(err)
	}
	return ErrNoPendingRegistration
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return code, saltStr + ":" + hash, nil
}

func verifyOTPCode(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	return strings.Contains(email[at:], ".")
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// keyedMutex serializa operaciones por clave sin un lock global. Las
// entradas se cuentan por referencia y se eliminan al quedar sin uso, asi
// el mapa no crece con cada email distinto.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
