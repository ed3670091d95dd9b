package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/services"
)

type SubscriptionController struct {
	Subscriptions *services.SubscriptionService
}

func (s *SubscriptionController) GetSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := s.Subscriptions.Status(c.Request.Context(), userID)
	if err != nil {
		logrus.WithError(err).Error("Error fetching subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, view)
}

type ActivateSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
}

func (s *SubscriptionController) ActivateSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ActivateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscription_id is required"})
		return
	}

	sub, err := s.Subscriptions.Activate(c.Request.Context(), userID, req.SubscriptionID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "subscription": sub})
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrSubscriptionPending):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrPaypalRequest):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to verify subscription with PayPal"})
	default:
		logrus.WithError(err).WithField("user_id", userID).Error("Error activating subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate subscription"})
	}
}

func (s *SubscriptionController) CancelSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	err := s.Subscriptions.Cancel(c.Request.Context(), userID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Subscription cancelled successfully"})
	case errors.Is(err, services.ErrNoSubscription):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active subscription found"})
	case errors.Is(err, services.ErrPaypalRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to cancel PayPal subscription: " + paypalDetail(err)})
	default:
		logrus.WithError(err).WithField("user_id", userID).Error("Error canceling subscription")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// paypalDetail strips the sentinel prefix from a PayPal failure.
func paypalDetail(err error) string {
	var perr *services.PaypalError
	if errors.As(err, &perr) {
		return perr.Detail
	}
	return err.Error()
}
