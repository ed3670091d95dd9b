package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

const (
	EventSubscriptionActivated     = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionCancelled     = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionExpired       = "BILLING.SUBSCRIPTION.EXPIRED"
	EventSubscriptionSuspended     = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventSubscriptionPaymentFailed = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"
	EventPaymentSaleCompleted      = "PAYMENT.SALE.COMPLETED"
)

// activationFallback is used when an activation carries no next billing time.
const activationFallback = 30 * 24 * time.Hour

type WebhookResource struct {
	ID                 string             `json:"id"`
	Status             string             `json:"status"`
	PlanID             string             `json:"plan_id"`
	BillingAgreementID string             `json:"billing_agreement_id"`
	Subscriber         *PaypalSubscriber  `json:"subscriber"`
	BillingInfo        *PaypalBillingInfo `json:"billing_info"`
}

type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Summary      string          `json:"summary"`
	Resource     WebhookResource `json:"resource"`

	// Raw is the whole delivery, stored with the log row.
	Raw map[string]any `json:"-"`
}

func (e *WebhookEvent) SubscriberEmail() string {
	if e.Resource.Subscriber == nil {
		return ""
	}
	return e.Resource.Subscriber.EmailAddress
}

// SubscriptionID is the billing subscription the event refers to. Sale events
// carry it as billing_agreement_id.
func (e *WebhookEvent) SubscriptionID() string {
	if e.EventType == EventPaymentSaleCompleted && e.Resource.BillingAgreementID != "" {
		return e.Resource.BillingAgreementID
	}
	return e.Resource.ID
}

func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if evt.EventType == "" || evt.Resource.ID == "" {
		return nil, fmt.Errorf("%w: event_type and resource.id are required", ErrInvalidWebhook)
	}
	if err := json.Unmarshal(body, &evt.Raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	return &evt, nil
}

type WebhookResult struct {
	Duplicate bool
	Handled   bool
}

// WebhookProcessor logs PayPal deliveries and applies them to user_subscriptions.
type WebhookProcessor struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
	handlers map[string]func(context.Context, *gorm.DB, *WebhookEvent) (*models.UserSubscription, error)
}

func NewWebhookProcessor(db *gorm.DB, notifier Notifier) *WebhookProcessor {
	p := &WebhookProcessor{db: db, notifier: notifier, now: time.Now}
	p.handlers = map[string]func(context.Context, *gorm.DB, *WebhookEvent) (*models.UserSubscription, error){
		EventSubscriptionActivated:     p.handleActivated,
		EventSubscriptionCancelled:     p.handleCancelled,
		EventSubscriptionExpired:       p.statusHandler(models.SubscriptionExpired),
		EventSubscriptionSuspended:     p.statusHandler(models.SubscriptionInactive),
		EventSubscriptionPaymentFailed: p.handlePaymentFailed,
		EventPaymentSaleCompleted:      p.handleSaleCompleted,
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (p *WebhookProcessor) Process(ctx context.Context, evt *WebhookEvent) (WebhookResult, error) {
	fields := logrus.Fields{
		"event_type":    evt.EventType,
		"resource_type": evt.ResourceType,
		"resource_id":   evt.Resource.ID,
	}
	logrus.WithFields(fields).Info("PayPal webhook received")

	db := p.db.WithContext(ctx)
	entry, err := p.logDelivery(db, evt)
	if err != nil {
		return WebhookResult{}, err
	}
	if entry.ProcessedAt != nil {
		logrus.WithFields(fields).WithField("event_id", evt.ID).Info("Duplicate webhook delivery ignored")
		return WebhookResult{Duplicate: true}, nil
	}

	handler, ok := p.handlers[evt.EventType]
	if !ok {
		logrus.WithFields(fields).Info("Unhandled webhook event type")
		if err := markProcessed(db, entry, p.now()); err != nil {
			return WebhookResult{}, err
		}
		return WebhookResult{}, nil
	}

	var changed *models.UserSubscription
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = handler(ctx, tx, evt)
		if err != nil {
			return err
		}
		return markProcessed(tx, entry, p.now())
	})
	if err != nil {
		logrus.WithFields(fields).WithError(err).Error("Error processing PayPal webhook")
		return WebhookResult{}, err
	}

	if changed != nil && changed.UserID != nil && p.notifier != nil {
		p.notifier.SubscriptionChanged(*changed.UserID, changed.Status)
	}
	return WebhookResult{Handled: true}, nil
}

// logDelivery returns the log row for the event, inserting it on first
// delivery. A row left unprocessed by a failed attempt is reused.
func (p *WebhookProcessor) logDelivery(db *gorm.DB, evt *WebhookEvent) (*models.PaymentLog, error) {
	if evt.ID != "" {
		var existing models.PaymentLog
		err := db.Where("paypal_event_id = ?", evt.ID).First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	entry := models.PaymentLog{
		PaypalEventID:        optional(evt.ID),
		PaypalSubscriptionID: optional(evt.SubscriptionID()),
		EventType:            optional(evt.EventType),
		EventData:            evt.Raw,
		UserEmail:            optional(evt.SubscriberEmail()),
	}
	if err := db.Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to log webhook event: %w", err)
	}
	return &entry, nil
}

func markProcessed(tx *gorm.DB, entry *models.PaymentLog, at time.Time) error {
	if err := tx.Model(entry).Update("processed_at", at).Error; err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

// findUserByEmail looks in users, then profiles.
func findUserByEmail(tx *gorm.DB, email string) (*uuid.UUID, error) {
	var user models.User
	err := tx.Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err == nil {
		return &user.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var profile models.Profile
	err = tx.Where("LOWER(email) = LOWER(?)", email).First(&profile).Error
	if err == nil {
		return &profile.UserID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, nil
}

func (p *WebhookProcessor) handleActivated(_ context.Context, tx *gorm.DB, evt *WebhookEvent) (*models.UserSubscription, error) {
	email := evt.SubscriberEmail()
	if email == "" {
		logrus.WithField("resource_id", evt.Resource.ID).Error("No subscriber email found in activation event")
		return nil, nil
	}

	userID, err := findUserByEmail(tx, email)
	if err != nil {
		return nil, err
	}
	if userID == nil {
		logrus.WithField("email", email).Error("User not found for subscriber email")
		return nil, nil
	}

	var nextBilling *time.Time
	if evt.Resource.BillingInfo != nil {
		nextBilling = evt.Resource.BillingInfo.NextBillingTime
	}
	expiresAt := p.now().Add(activationFallback)
	if nextBilling != nil {
		expiresAt = *nextBilling
	}

	sub, err := upsertSubscription(tx, evt.Resource.ID, userID, func(row *models.UserSubscription) {
		plan := models.ProPlanID
		row.Status = models.SubscriptionActive
		row.PlanID = &plan
		row.ExpiresAt = &expiresAt
		row.NextBillingDate = nextBilling
		row.Metadata = map[string]any{
			"activation_event": evt.Raw,
			"subscriber_email": email,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("error updating subscription: %w", err)
	}
	logrus.WithField("user_id", *userID).Info("Subscription activated")
	return sub, nil
}

func subscriptionByPaypalID(tx *gorm.DB, paypalID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := tx.Where("paypal_subscription_id = ?", paypalID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithField("paypal_subscription_id", paypalID).Warn("No subscription row for PayPal subscription")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (p *WebhookProcessor) statusHandler(status models.SubscriptionStatus) func(context.Context, *gorm.DB, *WebhookEvent) (*models.UserSubscription, error) {
	return func(_ context.Context, tx *gorm.DB, evt *WebhookEvent) (*models.UserSubscription, error) {
		sub, err := subscriptionByPaypalID(tx, evt.SubscriptionID())
		if err != nil || sub == nil {
			return nil, err
		}
		if err := tx.Model(sub).Update("status", status).Error; err != nil {
			return nil, fmt.Errorf("error setting subscription %s: %w", status, err)
		}
		sub.Status = status
		logrus.WithFields(logrus.Fields{
			"paypal_subscription_id": evt.SubscriptionID(),
			"status":                 status,
		}).Info("Subscription status updated")
		return sub, nil
	}
}

func (p *WebhookProcessor) handleCancelled(_ context.Context, tx *gorm.DB, evt *WebhookEvent) (*models.UserSubscription, error) {
	sub, err := subscriptionByPaypalID(tx, evt.SubscriptionID())
	if err != nil || sub == nil {
		return nil, err
	}
	metadata := make(map[string]any, len(sub.Metadata)+1)
	for k, v := range sub.Metadata {
		metadata[k] = v
	}
	metadata["cancellation_event"] = evt.Raw

	sub.Status = models.SubscriptionCancelled
	sub.Metadata = metadata
	if err := tx.Save(sub).Error; err != nil {
		return nil, fmt.Errorf("error cancelling subscription: %w", err)
	}
	logrus.WithField("paypal_subscription_id", evt.SubscriptionID()).Info("Subscription cancelled")
	return sub, nil
}

// PayPal retries failed payments, so the subscription is left as is.
func (p *WebhookProcessor) handlePaymentFailed(_ context.Context, _ *gorm.DB, evt *WebhookEvent) (*models.UserSubscription, error) {
	logrus.WithField("paypal_subscription_id", evt.SubscriptionID()).Warn("Payment failed for subscription")
	return nil, nil
}

func (p *WebhookProcessor) handleSaleCompleted(_ context.Context, tx *gorm.DB, evt *WebhookEvent) (*models.UserSubscription, error) {
	if evt.ResourceType != "sale" {
		return nil, nil
	}
	sub, err := subscriptionByPaypalID(tx, evt.SubscriptionID())
	if err != nil || sub == nil {
		return nil, err
	}
	expiresAt := p.now().AddDate(0, 1, 0)
	if err := tx.Model(sub).Updates(map[string]interface{}{
		"status":     models.SubscriptionActive,
		"expires_at": expiresAt,
	}).Error; err != nil {
		return nil, fmt.Errorf("error updating subscription after payment: %w", err)
	}
	sub.Status = models.SubscriptionActive
	sub.ExpiresAt = &expiresAt
	logrus.WithField("paypal_subscription_id", evt.SubscriptionID()).Info("Subscription renewed")
	return sub, nil
}
