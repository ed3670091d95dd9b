package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

// IsPro decides access to Pro features. Admins always qualify; otherwise the
// row must be active and, when it has an expiry, not yet expired.
func IsPro(sub *models.UserSubscription, isAdmin bool, now time.Time) bool {
	if isAdmin {
		return true
	}
	if sub == nil || sub.Status != models.SubscriptionActive {
		return false
	}
	if sub.ExpiresAt == nil {
		return true
	}
	return sub.ExpiresAt.After(now)
}

// Notifier is told about subscription status changes of a user.
type Notifier interface {
	SubscriptionChanged(userID uuid.UUID, status models.SubscriptionStatus)
}

type SubscriptionView struct {
	Status               models.SubscriptionStatus `json:"status"`
	ExpiresAt            *time.Time                `json:"expires_at"`
	PaypalSubscriptionID *string                   `json:"paypal_subscription_id"`
	PlanID               *string                   `json:"plan_id"`
	IsPro                bool                      `json:"is_pro"`
	IsAdmin              bool                      `json:"is_admin"`
}

type SubscriptionService struct {
	db       *gorm.DB
	paypal   PaypalAPI
	planID   string
	notifier Notifier
	now      func() time.Time
}

// NewSubscriptionService accepts a nil paypal client when PayPal is not configured.
func NewSubscriptionService(db *gorm.DB, paypal PaypalAPI, planID string, notifier Notifier) *SubscriptionService {
	return &SubscriptionService{db: db, paypal: paypal, planID: planID, notifier: notifier, now: time.Now}
}

func (s *SubscriptionService) notify(userID *uuid.UUID, status models.SubscriptionStatus) {
	if s.notifier != nil && userID != nil {
		s.notifier.SubscriptionChanged(*userID, status)
	}
}

// Get returns the user's row or nil.
func (s *SubscriptionService) Get(ctx context.Context, userID uuid.UUID) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SubscriptionService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	return HasAnyRole(ctx, s.db, userID, models.RoleAdmin)
}

// HasAnyRole checks user_roles for one of roles.
func HasAnyRole(ctx context.Context, db *gorm.DB, userID uuid.UUID, roles ...models.UserRole) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.UserRoleRecord{}).
		Where("user_id = ? AND role IN ?", userID, roles).
		Count(&count).Error
	return count > 0, err
}

func (s *SubscriptionService) Status(ctx context.Context, userID uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	isAdmin, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &SubscriptionView{
		Status:  models.SubscriptionInactive,
		IsAdmin: isAdmin,
		IsPro:   IsPro(sub, isAdmin, s.now()),
	}
	if sub != nil {
		view.Status = sub.Status
		view.ExpiresAt = sub.ExpiresAt
		view.PaypalSubscriptionID = sub.PaypalSubscriptionID
		view.PlanID = sub.PlanID
	}
	return view, nil
}

func (s *SubscriptionService) IsProUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	view, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return view.IsPro, nil
}

// findSubscription matches a row by PayPal subscription id first, then by user.
func findSubscription(tx *gorm.DB, paypalID string, userID *uuid.UUID) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	if paypalID != "" {
		err := tx.Where("paypal_subscription_id = ?", paypalID).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if userID != nil {
		err := tx.Where("user_id = ?", *userID).First(&sub).Error
		if err == nil {
			return &sub, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// upsertSubscription creates or updates the row for paypalID/userID inside tx.
func upsertSubscription(tx *gorm.DB, paypalID string, userID *uuid.UUID, apply func(*models.UserSubscription)) (*models.UserSubscription, error) {
	sub, err := findSubscription(tx, paypalID, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = &models.UserSubscription{}
	}
	if userID != nil {
		sub.UserID = userID
	}
	if paypalID != "" {
		id := paypalID
		sub.PaypalSubscriptionID = &id
	}
	apply(sub)
	if err := tx.Save(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

// Activate confirms a subscription approved on the client with PayPal and
// stores it for the user.
func (s *SubscriptionService) Activate(ctx context.Context, userID uuid.UUID, paypalID string) (*models.UserSubscription, error) {
	if paypalID == "" {
		return nil, fmt.Errorf("%w: subscription_id is required", ErrInvalidInput)
	}
	if s.paypal == nil {
		return nil, fmt.Errorf("PayPal: %w", ErrNotConfigured)
	}

	remote, err := s.paypal.GetSubscription(ctx, paypalID)
	if err != nil {
		return nil, err
	}
	if !remote.IsActive() {
		return nil, fmt.Errorf("%w: status %s", ErrSubscriptionPending, remote.Status)
	}

	var sub *models.UserSubscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findSubscription(tx, paypalID, nil)
		if err != nil {
			return err
		}
		if existing != nil && existing.UserID != nil && *existing.UserID != userID {
			return fmt.Errorf("%w: subscription belongs to another account", ErrInvalidInput)
		}

		sub, err = upsertSubscription(tx, paypalID, &userID, func(row *models.UserSubscription) {
			row.Status = models.SubscriptionActive
			if s.planID != "" {
				plan := s.planID
				row.PlanID = &plan
			} else if remote.PlanID != "" {
				plan := remote.PlanID
				row.PlanID = &plan
			}
			row.ExpiresAt = remote.BillingInfo.NextBillingTime
			row.NextBillingDate = remote.BillingInfo.NextBillingTime
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":                userID,
		"paypal_subscription_id": paypalID,
	}).Info("Subscription activated")
	s.notify(&userID, models.SubscriptionActive)
	return sub, nil
}

// Cancel cancels the user's PayPal subscription and marks the row cancelled.
func (s *SubscriptionService) Cancel(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil || sub.PaypalSubscriptionID == nil || *sub.PaypalSubscriptionID == "" {
		return ErrNoSubscription
	}
	if s.paypal == nil {
		return &PaypalError{Detail: "PayPal is not configured"}
	}

	if err := s.paypal.CancelSubscription(ctx, *sub.PaypalSubscriptionID, "User requested cancellation"); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(sub).Update("status", models.SubscriptionCancelled).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":                userID,
		"paypal_subscription_id": *sub.PaypalSubscriptionID,
	}).Info("Subscription cancelled")
	s.notify(&userID, models.SubscriptionCancelled)
	return nil
}

// SweepExpired moves active rows past their expiry to expired.
func (s *SubscriptionService) SweepExpired(ctx context.Context) (int64, error) {
	var expired []models.UserSubscription
	now := s.now()
	if err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.SubscriptionActive, now).
		Find(&expired).Error; err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	// The expiry condition is repeated per row so a renewal that lands after
	// the select is not overwritten.
	var changed int64
	for _, sub := range expired {
		result := s.db.WithContext(ctx).Model(&models.UserSubscription{}).
			Where("id = ? AND status = ? AND expires_at IS NOT NULL AND expires_at < ?", sub.ID, models.SubscriptionActive, now).
			Update("status", models.SubscriptionExpired)
		if result.Error != nil {
			return changed, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		changed++
		s.notify(sub.UserID, models.SubscriptionExpired)
	}
	return changed, nil
}
