// internal/auth/handlers.go
package auth

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
)

// AuthHandlers provides HTTP handlers for authentication endpoints
type AuthHandlers struct {
	authManager *AuthManager
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authManager *AuthManager) *AuthHandlers {
	return &AuthHandlers{
		authManager: authManager,
	}
}

// SetupRoutes sets up authentication routes
func (ah *AuthHandlers) SetupRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", ah.Login)
	r.GET("/auth/status", ah.GetAuthStatus)
	r.GET("/auth/me", ah.authManager.Middleware(), ah.GetCurrentUser)

	admin := r.Group("/auth")
	admin.Use(ah.authManager.Middleware(), ah.authManager.RequireRole(RoleAdmin))
	{
		admin.GET("/api-keys", ah.ListAPIKeys)
		admin.POST("/api-keys", ah.CreateAPIKey)
		admin.DELETE("/api-keys/:id", ah.RevokeAPIKey)
		admin.GET("/rate-limit-stats", ah.GetRateLimitStats)
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	User      *User  `json:"user"`
}

// Login exchanges a username and password for a JWT
func (ah *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, errors.NewInvalidInputError("body", err.Error()))
		return
	}

	user, err := ah.authManager.Authenticate(req.Username, req.Password)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, errors.NewInvalidCredentialsError())
		return
	}

	token, expiresAt, err := ah.authManager.CreateJWTToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "INTERNAL_ERROR", "message": "failed to create token"}})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      user,
	})
}

// GetCurrentUser returns the current authenticated user
func (ah *AuthHandlers) GetCurrentUser(c *gin.Context) {
	user, exists := GetCurrentUser(c)
	if !exists {
		abortWithError(c, http.StatusUnauthorized, errors.NewNotAuthenticatedError())
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetAuthStatus returns authentication configuration
func (ah *AuthHandlers) GetAuthStatus(c *gin.Context) {
	cfg := ah.authManager.Config()
	c.JSON(http.StatusOK, gin.H{
		"allow_anonymous": cfg.AllowAnonymous,
		"rate_limit":      cfg.RateLimit,
		"jwt_expiry":      cfg.JWTExpiry.String(),
	})
}

// CreateAPIKeyRequest represents a request to create an API key
type CreateAPIKeyRequest struct {
	Name      string `json:"name" binding:"required"`
	ExpiresIn string `json:"expires_in"` // e.g. "30d", "1y", "720h"; empty never expires
}

// CreateAPIKey creates a new API key for the current user
func (ah *AuthHandlers) CreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, errors.NewInvalidInputError("body", err.Error()))
		return
	}

	userID, _ := GetCurrentUserID(c)

	expiresIn, err := parseDuration(req.ExpiresIn)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, errors.NewInvalidInputError("expires_in", err.Error()))
		return
	}

	apiKey, err := ah.authManager.CreateAPIKey(userID, req.Name, expiresIn)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, errors.NewInvalidInputError("user", err.Error()))
		return
	}

	// the only response that carries the plaintext key
	c.JSON(http.StatusCreated, apiKey)
}

// ListAPIKeys returns all API keys for the current user
func (ah *AuthHandlers) ListAPIKeys(c *gin.Context) {
	userID, _ := GetCurrentUserID(c)
	c.JSON(http.StatusOK, gin.H{"api_keys": ah.authManager.ListAPIKeys(userID)})
}

// RevokeAPIKey revokes an API key
func (ah *AuthHandlers) RevokeAPIKey(c *gin.Context) {
	if err := ah.authManager.RevokeAPIKey(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked successfully"})
}

// GetRateLimitStats returns rate limiting statistics
func (ah *AuthHandlers) GetRateLimitStats(c *gin.Context) {
	c.JSON(http.StatusOK, ah.authManager.limiter.GetStats())
}

// parseDuration parses duration strings like "30d", "2w", "1y", "720h"
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	units := map[string]time.Duration{
		"d": 24 * time.Hour,
		"w": 7 * 24 * time.Hour,
		"y": 365 * 24 * time.Hour,
	}
	for suffix, unit := range units {
		if strings.HasSuffix(s, suffix) {
			n, err := strconv.Atoi(strings.TrimSuffix(s, suffix))
			if err != nil {
				return 0, err
			}
			return time.Duration(n) * unit, nil
		}
	}

	return time.ParseDuration(s)
}
