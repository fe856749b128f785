package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chainfeed/gateway/internal/service"
)

// RequireAuth guards the admin API with operator session tokens; priced data
// endpoints use HybridAuth instead. The token's account is re-resolved on
// every request, so deleting an account kills its outstanding sessions.
func RequireAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		account, err := authService.CurrentUser(c.Request.Context(), claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Account not found",
			})
			return
		}

		c.Set("admin_id", account.ID.String())
		c.Set("admin_email", account.Email)
		c.Set("admin_role", account.Role)
		c.Set("admin_can_write", account.CanWrite())

		c.Next()
	}
}

// RequireWriter rejects viewer accounts on mutating admin routes. Must run
// after RequireAuth.
func RequireWriter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("admin_can_write") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "This action requires an admin role",
			})
			return
		}

		c.Next()
	}
}
