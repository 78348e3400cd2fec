package service

import "errors"

// Taxonomia de errores del nucleo de autenticacion. Los llamadores deben
// ramificar con errors.Is, nunca comparando mensajes.
var (
	ErrDuplicateUser         = errors.New("user already exists")
	ErrNoPendingRegistration = errors.New("no pending registration")
	ErrAlreadyConfirmed      = errors.New("registration already confirmed")
	ErrOTPExpired            = errors.New("otp expired")
	ErrCodeMismatch          = errors.New("otp code mismatch")
	ErrTooManyAttempts       = errors.New("too many failed attempts")
	ErrDeliveryFailed        = errors.New("otp delivery failed")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrTokenExpired          = errors.New("token expired")
	ErrBadSignature          = errors.New("bad token signature")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrRateLimited           = errors.New("rate limited")
	ErrWeakPassword          = errors.New("password too weak")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrStorageUnavailable    = errors.New("storage unavailable")
)
