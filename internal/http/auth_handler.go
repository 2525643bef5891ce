package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"session-auth/internal/service"
)

// Pinger verifica la conectividad del credential store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
	cookie CookiePolicy
	store  Pinger
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cookie CookiePolicy, store Pinger) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		auth:   auth,
		cookie: cookie,
		store:  store,
	}
}

// Register maneja POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		failure(c, http.StatusBadRequest, CodeInvalidRequest, "invalid request")
		return
	}

	session, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	SetSessionCookie(c.Writer, h.cookie, session.Token)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "user registered successfully",
		"user":    session.User.Public(),
		"token":   session.Token,
	})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		failure(c, http.StatusBadRequest, CodeInvalidRequest, "invalid request")
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	SetSessionCookie(c.Writer, h.cookie, session.Token)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "login successful",
		"user":    session.User.Public(),
		"token":   session.Token,
	})
}

// Verify maneja GET /api/auth/verify y /api/auth/me. Requiere SessionMiddleware.
func (h *AuthHandler) Verify(c *gin.Context) {
	user, ok := GetAuthUser(c)
	if !ok {
		failure(c, http.StatusUnauthorized, CodeTokenRequired, "access token required")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    user.Public(),
	})
}

// Logout maneja POST /api/auth/logout. Solo borra la cookie; el token sigue siendo
// válido hasta que expira.
func (h *AuthHandler) Logout(c *gin.Context) {
	ClearSessionCookie(c.Writer, h.cookie)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "logout successful",
	})
}

// Health maneja GET /healthz.
func (h *AuthHandler) Health(c *gin.Context) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
