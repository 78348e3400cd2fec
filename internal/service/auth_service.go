package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"mail-auth/internal/domain"
	"mail-auth/internal/repository"
)

// AuthService es la fachada de autenticacion: unico punto de entrada del
// resto del sistema. Ningun colaborador toca los repositorios ni el
// validador de sesiones directamente.
type AuthService struct {
	logger *zap.Logger
	users  repository.UserRepository
	otp    *OTPService
	hasher *PasswordHasher
	tokens *TokenService
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	otp *OTPService,
	hasher *PasswordHasher,
	tokens *TokenService,
) *AuthService {
	return &AuthService{
		logger: logger,
		users:  users,
		otp:    otp,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register inicia el alta: emite un OTP y crea el registro pendiente.
func (s *AuthService) Register(ctx context.Context, emailAddr, password string) (domain.PendingRegistration, error) {
	return s.otp.Issue(ctx, emailAddr, password)
}

// ConfirmRegistration verifica el codigo y promueve el pendiente a User.
func (s *AuthService) ConfirmRegistration(ctx context.Context, emailAddr, code string) (domain.User, error) {
	return s.otp.Verify(ctx, emailAddr, code)
}

// ResendCode regenera y reenvia el codigo de un registro pendiente.
func (s *AuthService) ResendCode(ctx context.Context, emailAddr string) (domain.PendingRegistration, error) {
	return s.otp.Resend(ctx, emailAddr)
}

// Login autentica email+password y emite un token de sesion. Usuario
// inexistente y password incorrecta devuelven el mismo error. La password
// se compara tal cual se recibio, igual que al registrarla.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (string, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", storageErr(err)
	}
	if !s.hasher.Verify(password, user.PasswordHash, user.Salt) {
		return "", ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, emailAddr, time.Now().UTC()); err != nil {
		if s.logger != nil {
			s.logger.Warn("last login update failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}
	return s.tokens.Issue(emailAddr)
}

// Authenticate valida el token y devuelve la identidad ligada. Se invoca
// en cada operacion protegida.
func (s *AuthService) Authenticate(token string) (domain.Identity, error) {
	return s.tokens.Validate(token)
}

// Logout revoca el token de sesion hasta su expiracion natural.
func (s *AuthService) Logout(token string) error {
	return s.tokens.Revoke(token)
}

// ChangePassword reemplaza el hash tras verificar la password actual.
func (s *AuthService) ChangePassword(ctx context.Context, emailAddr, current, next string) error {
	emailAddr = normalizeEmail(emailAddr)
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return storageErr(err)
	}
	if !s.hasher.Verify(current, user.PasswordHash, user.Salt) {
		return ErrInvalidCredentials
	}
	digest, salt, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, emailAddr, digest, salt); err != nil {
		return storageErr(err)
	}
	return nil
}

// DeleteAccount elimina la cuenta tras verificar la password.
func (s *AuthService) DeleteAccount(ctx context.Context, emailAddr, password string) error {
	emailAddr = normalizeEmail(emailAddr)
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return storageErr(err)
	}
	if !s.hasher.Verify(password, user.PasswordHash, user.Salt) {
		return ErrInvalidCredentials
	}
	if err := s.users.Delete(ctx, emailAddr); err != nil {
		return storageErr(err)
	}
	return nil
}
