package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/aetherstudy-backend/models"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// GetPaymentLogs lists webhook deliveries, newest first.
func GetPaymentLogs(c *gin.Context) {
	db := dbFrom(c)

	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLogLimit)
	}

	query := db.Order("received_at DESC").Limit(limit)
	if subID := c.Query("subscription_id"); subID != "" {
		query = query.Where("paypal_subscription_id = ?", subID)
	}
	if eventType := c.Query("event_type"); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	var logs []models.PaymentLog
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payment logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_logs": logs, "count": len(logs)})
}
