package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mail-auth/internal/domain"
	"mail-auth/internal/service"
)

const (
	identityKey    = "auth_identity"
	bearerTokenKey = "auth_bearer_token"
)

// AuthMiddleware valida el token de sesion y guarda la identidad en el
// contexto de la request.
func AuthMiddleware(authServ *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authServ == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
			c.Abort()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		identity, err := authServ.Authenticate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Set(bearerTokenKey, token)
		c.Next()
	}
}

// GetIdentity obtiene la identidad validada desde el contexto.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

// GetBearerToken obtiene el token crudo de la request autenticada.
func GetBearerToken(c *gin.Context) (string, bool) {
	val, ok := c.Get(bearerTokenKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}
