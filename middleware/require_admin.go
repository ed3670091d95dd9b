package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/services"
	"gorm.io/gorm"
)

// RequireRoles lets the request through when user_roles holds one of
// allowedRoles for the authenticated user. Run it after AuthMiddleware.
func RequireRoles(db *gorm.DB, allowedRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetString("user_id"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unable to determine user"})
			c.Abort()
			return
		}

		ok, err := services.HasAnyRole(c.Request.Context(), db, userID, allowedRoles...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check user roles"})
			c.Abort()
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this resource"})
			c.Abort()
			return
		}
		c.Next()
	}
}
