package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/services"
)

const maxWebhookBody = 1 << 20

type WebhookController struct {
	Processor *services.WebhookProcessor
	// Verifier is nil when PayPal credentials are absent.
	Verifier services.PaypalAPI
}

func (w *WebhookController) PaypalWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to read request body"})
		return
	}

	evt, err := services.ParseWebhookEvent(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if w.Verifier != nil {
		if err := w.Verifier.VerifyWebhookSignature(c.Request.Context(), c.Request.Header, body); err != nil {
			logrus.WithError(err).WithField("event_type", evt.EventType).Warn("Rejected PayPal webhook")
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid webhook signature"})
			return
		}
	}

	if _, err := w.Processor.Process(c.Request.Context(), evt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook processed successfully"})
}
