package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

func GetProfile(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var profile models.Profile
	err := db.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		email := c.GetString("email")
		profile = models.Profile{UserID: userID}
		if email != "" {
			profile.Email = &email
		}
		c.JSON(http.StatusOK, gin.H{"profile": profile})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
}

func UpdateProfile(c *gin.Context) {
	db := dbFrom(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DisplayName != nil {
		trimmed := strings.TrimSpace(*req.DisplayName)
		req.DisplayName = &trimmed
	}

	var profile models.Profile
	err := db.Where("user_id = ?", userID).First(&profile).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	profile.UserID = userID
	profile.DisplayName = req.DisplayName
	if email := c.GetString("email"); email != "" {
		profile.Email = &email
	}
	if err := db.Save(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
