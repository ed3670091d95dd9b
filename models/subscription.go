package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// ProPlanID is stored on rows activated from a webhook.
const ProPlanID = "aetherstudy_pro"

type UserSubscription struct {
	Base
	UserID               *uuid.UUID         `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	PaypalSubscriptionID *string            `gorm:"size:64;uniqueIndex" json:"paypal_subscription_id"`
	Status               SubscriptionStatus `gorm:"type:varchar(20);default:'inactive'" json:"status"`
	PlanID               *string            `gorm:"size:64" json:"plan_id"`
	ExpiresAt            *time.Time         `json:"expires_at"`
	NextBillingDate      *time.Time         `json:"next_billing_date"`
	Metadata             map[string]any     `gorm:"serializer:json" json:"metadata"`
}

// PaymentLog records every webhook delivery as received.
type PaymentLog struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PaypalEventID        *string        `gorm:"size:64;uniqueIndex" json:"paypal_event_id"`
	PaypalSubscriptionID *string        `gorm:"size:64;index" json:"paypal_subscription_id"`
	EventType            *string        `gorm:"size:100" json:"event_type"`
	EventData            map[string]any `gorm:"serializer:json" json:"event_data"`
	UserEmail            *string        `gorm:"size:255" json:"user_email"`
	ReceivedAt           time.Time      `gorm:"autoCreateTime" json:"received_at"`
	// ProcessedAt is set once the event has been applied. A redelivery of a
	// logged but unprocessed event is applied again.
	ProcessedAt *time.Time `json:"processed_at"`
}

func (l *PaymentLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
