// internal/api/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"oilwise-api-server/internal/auth"
	"oilwise-api-server/internal/models"
)

// Context keys set by Authenticate and read by handlers.
const (
	CtxUserID    = "user_id"
	CtxUserRole  = "user_role"
	CtxUserState = "user_state"
	CtxUserEmail = "user_email"
)

// Authenticate validates the bearer token and puts the caller's identity into
// the request context.
func Authenticate(tokens *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			return
		}

		claims, err := tokens.ParseJWT(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUserRole, claims.Role)
		c.Set(CtxUserState, claims.State)
		c.Set(CtxUserEmail, claims.Email)

		c.Next()
	}
}

// Authorize is a middleware factory that allows only the listed roles.
func Authorize(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get(CtxUserRole)
		if !exists {
			// Only happens when Authenticate was not run first.
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "User role not found in context"})
			return
		}

		userRole, ok := roleValue.(models.Role)
		if !ok || !userRole.IsValid() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Unknown role"})
			return
		}

		for _, role := range allowedRoles {
			if role == userRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}

// CallerRole returns the authenticated caller's role from the context.
func CallerRole(c *gin.Context) models.Role {
	roleValue, _ := c.Get(CtxUserRole)
	role, _ := roleValue.(models.Role)
	return role
}
