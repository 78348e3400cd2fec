package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mail-auth/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticacion.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		authServ: authServ,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, err := h.authServ.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateUser):
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
		case errors.Is(err, service.ErrWeakPassword),
			errors.Is(err, service.ErrInvalidEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrDeliveryFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		default:
			h.logger.Error("register failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "otp_sent"})
}

// Verify maneja POST /auth/verify.
func (h *AuthHandler) Verify(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.authServ.ConfirmRegistration(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingRegistration):
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending registration"})
		case errors.Is(err, service.ErrAlreadyConfirmed):
			c.JSON(http.StatusConflict, gin.H{"error": "registration already confirmed"})
		case errors.Is(err, service.ErrOTPExpired),
			errors.Is(err, service.ErrCodeMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many failed attempts"})
		default:
			h.logger.Error("verify failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Resend maneja POST /auth/resend.
func (h *AuthHandler) Resend(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	_, err := h.authServ.ResendCode(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPendingRegistration):
			c.JSON(http.StatusNotFound, gin.H{"error": "no pending registration"})
		case errors.Is(err, service.ErrAlreadyConfirmed):
			c.JSON(http.StatusConflict, gin.H{"error": "registration already confirmed"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrDeliveryFailed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		default:
			h.logger.Error("resend failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resend"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "otp_sent"})
}

// Login maneja POST /auth/login. Usuario inexistente y password incorrecta
// producen exactamente la misma respuesta.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.authServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := GetBearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	if err := h.authServ.Logout(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}

// ChangePassword maneja POST /auth/password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid change password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.authServ.ChangePassword(c.Request.Context(), identity.Email, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		case errors.Is(err, service.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("change password failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not change password"})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAccount maneja DELETE /auth/account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid delete account request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.authServ.DeleteAccount(c.Request.Context(), identity.Email, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("delete account failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete account"})
		return
	}
	c.Status(http.StatusNoContent)
}
