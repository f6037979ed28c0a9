package middleware

import (
	"net/http"

	"authservice/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireStaff lets only staff users through. Mount after
// Require(RequireAuthenticated).
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		if !user.IsStaff {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "Access denied: staff only")
			return
		}
		c.Next()
	}
}
