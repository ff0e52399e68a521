// internal/auth/middleware.go
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seanankenbruck/insidebi-ai/internal/errors"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

// AnonymousUserID is reported for requests let through without credentials
const AnonymousUserID = "anonymous"

// Middleware rate limits the request, then authenticates it with a bearer
// JWT or an X-API-Key header. Requests without credentials pass through
// when anonymous access is allowed; bad credentials are always rejected.
func (am *AuthManager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.limiter.Allow(getClientID(c), am.config.RateLimit) {
			abortWithError(c, http.StatusTooManyRequests, errors.NewRateLimitedError(am.config.RateLimit))
			return
		}

		user, presented, err := am.authenticateRequest(c)
		if err != nil {
			am.logger.Warn(c.Request.Context(), "Authentication failed", map[string]interface{}{
				"path":      c.Request.URL.Path,
				"client_ip": c.ClientIP(),
				"error":     err.Error(),
			})
			abortWithError(c, http.StatusUnauthorized, errors.NewInvalidCredentialsError())
			return
		}

		if !presented {
			if !am.config.AllowAnonymous {
				abortWithError(c, http.StatusUnauthorized, errors.NewNotAuthenticatedError())
				return
			}
			c.Set("user_id", AnonymousUserID)
			c.Request = c.Request.WithContext(observability.WithUserID(c.Request.Context(), AnonymousUserID))
			c.Next()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("username", user.Username)
		c.Set("roles", user.Roles)
		c.Request = c.Request.WithContext(observability.WithUserID(c.Request.Context(), user.ID))

		c.Next()
	}
}

// RequireRole returns a middleware that checks the authenticated user's roles
func (am *AuthManager) RequireRole(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := GetCurrentUser(c)
		if !exists {
			abortWithError(c, http.StatusUnauthorized, errors.NewNotAuthenticatedError())
			return
		}

		if !user.HasRole(requiredRoles...) {
			abortWithError(c, http.StatusForbidden, errors.NewInsufficientPermissionsError(requiredRoles...))
			return
		}

		c.Next()
	}
}

// authenticateRequest reports whether credentials were presented, and the
// user they identify when valid
func (am *AuthManager) authenticateRequest(c *gin.Context) (*User, bool, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return nil, true, errors.NewInvalidInputError("Authorization", "expected 'Bearer <token>'")
		}

		claims, err := am.ValidateJWTToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, true, err
		}
		user, err := am.GetUser(claims.UserID)
		return user, true, err
	}

	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		user, _, err := am.ValidateAPIKey(apiKey)
		return user, true, err
	}

	return nil, false, nil
}

// getClientID gets a unique identifier for rate limiting
func getClientID(c *gin.Context) string {
	if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
		return "key:" + hashAPIKey(apiKey)[:12]
	}
	return "ip:" + c.ClientIP()
}

func abortWithError(c *gin.Context, status int, err *errors.EnhancedError) {
	body := gin.H{
		"code":    err.Code,
		"message": err.Message,
	}
	if err.Suggestion != "" {
		body["suggestion"] = err.Suggestion
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// GetCurrentUser returns the current authenticated user from context
func GetCurrentUser(c *gin.Context) (*User, bool) {
	value, exists := c.Get("user")
	if !exists {
		return nil, false
	}

	user, ok := value.(*User)
	return user, ok
}

// GetCurrentUserID returns the current user ID from context
func GetCurrentUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		return "", false
	}

	userID, ok := value.(string)
	return userID, ok
}
