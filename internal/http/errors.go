package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"session-auth/internal/service"
)

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenRequired      = "TOKEN_REQUIRED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeNotFound           = "NOT_FOUND"
	CodeInternal           = "INTERNAL_ERROR"
)

func failure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
		"code":    code,
	})
}

// respondError traduce errores del flujo de autenticación a respuestas HTTP.
// Los fallos de infraestructura se registran y se exponen como un 500 genérico.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		failure(c, http.StatusBadRequest, CodeValidation, vErr.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		failure(c, http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, service.ErrJWTExpired):
		failure(c, http.StatusUnauthorized, CodeTokenExpired, "token expired")
	case errors.Is(err, service.ErrJWTInvalid), errors.Is(err, service.ErrUserNotFound):
		// usuario borrado y token inválido se ven igual desde fuera
		failure(c, http.StatusUnauthorized, CodeTokenInvalid, "invalid token")
	default:
		logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		failure(c, http.StatusInternalServerError, CodeInternal, "internal server error")
	}
}
