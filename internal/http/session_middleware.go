package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"session-auth/internal/domain"
	"session-auth/internal/service"
)

const authUserKey = "auth_user"

// SessionMiddleware extrae el token (cookie o Bearer), lo valida y guarda el usuario
// en el contexto.
func SessionMiddleware(logger *zap.Logger, auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			failure(c, http.StatusInternalServerError, CodeInternal, "auth not configured")
			return
		}

		token := ExtractToken(c.Request)
		if token == "" {
			failure(c, http.StatusUnauthorized, CodeTokenRequired, "access token required")
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.Set(authUserKey, user)
		c.Next()
	}
}

// GetAuthUser obtiene el usuario autenticado desde el contexto.
func GetAuthUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(authUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
