package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mail-auth/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas base.
func NewRouter(logger *zap.Logger, authServ *service.AuthService, authH *AuthHandler) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/verify", authH.Verify)
	auth.POST("/resend", authH.Resend)
	auth.POST("/login", authH.Login)

	protected := auth.Group("")
	protected.Use(AuthMiddleware(authServ))
	protected.POST("/logout", authH.Logout)
	protected.GET("/me", authH.Me)
	protected.POST("/password", authH.ChangePassword)
	protected.DELETE("/account", authH.DeleteAccount)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
