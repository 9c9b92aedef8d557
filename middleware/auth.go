package middleware

import (
	"errors"
	"net/http"
	"strings"

	"bursary-management-api/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by AdminAuth.
const (
	ContextAdminID  = "adminID"
	ContextUsername = "username"
)

// AdminAuth validates the bearer token and requires an active admin.
func AdminAuth(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		// Check Bearer prefix
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := auth.ParseToken(c.Request.Context(), tokenString)
		if err != nil {
			var engineErr *services.Error
			if errors.As(err, &engineErr) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": engineErr.Reason})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			c.Abort()
			return
		}

		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextUsername, claims.Username)
		c.Next()
	}
}

// CurrentAdmin returns the username stored by AdminAuth, or "" outside an
// authenticated route.
func CurrentAdmin(c *gin.Context) string {
	return c.GetString(ContextUsername)
}
