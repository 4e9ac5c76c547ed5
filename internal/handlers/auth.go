package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/auth"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// AuthHandler serves sign-up, login, and session resolution.
type AuthHandler struct {
	authService *auth.Service
	profiles    repositories.ProfileRepository
	audit       *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(authService *auth.Service, profiles repositories.ProfileRepository, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{authService: authService, profiles: profiles, audit: audit}
}

// SignUp creates an account. Profile setup happens separately.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acc, err := h.authService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "could not create account"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "account created", requestIDFromContext(c), &acc.ID)
	c.JSON(http.StatusCreated, gin.H{"id": acc.ID, "email": acc.Email})
}

// Login verifies credentials and issues a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, acc, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "id": acc.ID, "email": acc.Email})
}

// Session resolves the authenticated identity and tells the client where it
// belongs: profile setup when no profile row exists yet, the dashboard
// otherwise.
func (h *AuthHandler) Session(c *gin.Context) {
	userID := c.GetInt("userID")

	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrProfileNotFound) {
			c.JSON(http.StatusOK, gin.H{"id": userID, "profile": nil, "route": "profile-setup"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": userID, "profile": profile, "route": "dashboard"})
}
