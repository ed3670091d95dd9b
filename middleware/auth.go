package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	// X-Auth-Token is accepted for clients that cannot set Authorization.
	if authHeader == "" {
		authHeader = c.GetHeader("X-Auth-Token")
	}
	if authHeader == "" {
		return "", false
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware verifies the hosted auth access token and mirrors the user
// into the users table.
func AuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or malformed Authorization header"})
			c.Abort()
			return
		}

		claims, err := utils.VerifyToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		userID, err := uuid.Parse(claims.UserID())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token subject"})
			c.Abort()
			return
		}

		if err := syncUser(db, userID, claims.Email); err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to sync user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			c.Abort()
			return
		}

		c.Set("user_id", userID.String())
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func syncUser(db *gorm.DB, userID uuid.UUID, email string) error {
	var user models.User
	err := db.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Base: models.Base{ID: userID}, Email: email}
		return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error
	}
	if err != nil {
		return err
	}
	if email != "" && user.Email != email {
		return db.Model(&user).Update("email", email).Error
	}
	return nil
}
