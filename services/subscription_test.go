package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"gorm.io/gorm"
)

func TestIsPro(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name    string
		sub     *models.UserSubscription
		isAdmin bool
		want    bool
	}{
		{"admin without row", nil, true, true},
		{"no row", nil, false, false},
		{"inactive", &models.UserSubscription{Status: models.SubscriptionInactive}, false, false},
		{"cancelled with future expiry", &models.UserSubscription{Status: models.SubscriptionCancelled, ExpiresAt: &future}, false, false},
		{"active without expiry", &models.UserSubscription{Status: models.SubscriptionActive}, false, true},
		{"active future expiry", &models.UserSubscription{Status: models.SubscriptionActive, ExpiresAt: &future}, false, true},
		{"active past expiry", &models.UserSubscription{Status: models.SubscriptionActive, ExpiresAt: &past}, false, false},
		{"active expiring now", &models.UserSubscription{Status: models.SubscriptionActive, ExpiresAt: &now}, false, false},
		{"admin with expired row", &models.UserSubscription{Status: models.SubscriptionExpired}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPro(tt.sub, tt.isAdmin, now); got != tt.want {
				t.Errorf("IsPro() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakePaypal struct {
	sub       *PaypalSubscription
	getErr    error
	cancelErr error
	cancelled []string
}

func (f *fakePaypal) GetSubscription(_ context.Context, id string) (*PaypalSubscription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s := *f.sub
	s.ID = id
	return &s, nil
}

func (f *fakePaypal) CancelSubscription(_ context.Context, id, _ string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakePaypal) VerifyWebhookSignature(context.Context, http.Header, []byte) error { return nil }

func strPtr(s string) *string { return &s }

func TestSubscriptionStatus(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewSubscriptionService(db, nil, "", nil)

	userID := uuid.New()
	view, err := svc.Status(ctx, userID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if view.Status != models.SubscriptionInactive || view.IsPro || view.IsAdmin {
		t.Errorf("unexpected view for user without row: %+v", view)
	}

	if err := db.Create(&models.UserRoleRecord{UserID: userID, Role: models.RoleAdmin}).Error; err != nil {
		t.Fatal(err)
	}
	view, err = svc.Status(ctx, userID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !view.IsAdmin || !view.IsPro {
		t.Errorf("admin should be pro: %+v", view)
	}
}

func TestSubscriptionActivate(t *testing.T) {
	ctx := context.Background()
	next := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("active at paypal", func(t *testing.T) {
		db := openTestDB(t)
		notifier := &recordingNotifier{}
		paypal := &fakePaypal{sub: &PaypalSubscription{Status: "ACTIVE", BillingInfo: PaypalBillingInfo{NextBillingTime: &next}}}
		svc := NewSubscriptionService(db, paypal, "P-PLAN", notifier)
		userID := uuid.New()

		sub, err := svc.Activate(ctx, userID, "I-SUB1")
		if err != nil {
			t.Fatalf("Activate() error = %v", err)
		}
		if sub.Status != models.SubscriptionActive || sub.PlanID == nil || *sub.PlanID != "P-PLAN" {
			t.Errorf("unexpected row %+v", sub)
		}
		if sub.ExpiresAt == nil || !sub.ExpiresAt.Equal(next) {
			t.Errorf("ExpiresAt = %v, want %v", sub.ExpiresAt, next)
		}
		if len(notifier.sent) != 1 || notifier.sent[0].status != models.SubscriptionActive {
			t.Errorf("notifications = %+v", notifier.sent)
		}

		// A second activation updates the same row.
		if _, err := svc.Activate(ctx, userID, "I-SUB1"); err != nil {
			t.Fatalf("second Activate() error = %v", err)
		}
		var count int64
		db.Model(&models.UserSubscription{}).Count(&count)
		if count != 1 {
			t.Errorf("rows = %d, want 1", count)
		}
	})

	t.Run("pending at paypal", func(t *testing.T) {
		db := openTestDB(t)
		paypal := &fakePaypal{sub: &PaypalSubscription{Status: "APPROVAL_PENDING"}}
		svc := NewSubscriptionService(db, paypal, "", nil)
		_, err := svc.Activate(ctx, uuid.New(), "I-SUB2")
		if !errors.Is(err, ErrSubscriptionPending) {
			t.Fatalf("expected ErrSubscriptionPending, got %v", err)
		}
	})

	t.Run("belongs to another user", func(t *testing.T) {
		db := openTestDB(t)
		owner := uuid.New()
		if err := db.Create(&models.UserSubscription{UserID: &owner, PaypalSubscriptionID: strPtr("I-SUB3"), Status: models.SubscriptionActive}).Error; err != nil {
			t.Fatal(err)
		}
		paypal := &fakePaypal{sub: &PaypalSubscription{Status: "ACTIVE"}}
		svc := NewSubscriptionService(db, paypal, "", nil)
		_, err := svc.Activate(ctx, uuid.New(), "I-SUB3")
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("paypal not configured", func(t *testing.T) {
		svc := NewSubscriptionService(openTestDB(t), nil, "", nil)
		_, err := svc.Activate(ctx, uuid.New(), "I-SUB4")
		if !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("expected ErrNotConfigured, got %v", err)
		}
	})
}

func TestSubscriptionCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("no subscription", func(t *testing.T) {
		svc := NewSubscriptionService(openTestDB(t), &fakePaypal{}, "", nil)
		if err := svc.Cancel(ctx, uuid.New()); !errors.Is(err, ErrNoSubscription) {
			t.Fatalf("expected ErrNoSubscription, got %v", err)
		}
	})

	t.Run("row without paypal id", func(t *testing.T) {
		db := openTestDB(t)
		userID := uuid.New()
		db.Create(&models.UserSubscription{UserID: &userID, Status: models.SubscriptionActive})
		svc := NewSubscriptionService(db, &fakePaypal{}, "", nil)
		if err := svc.Cancel(ctx, userID); !errors.Is(err, ErrNoSubscription) {
			t.Fatalf("expected ErrNoSubscription, got %v", err)
		}
	})

	t.Run("paypal failure keeps status", func(t *testing.T) {
		db := openTestDB(t)
		userID := uuid.New()
		db.Create(&models.UserSubscription{UserID: &userID, PaypalSubscriptionID: strPtr("I-X"), Status: models.SubscriptionActive})
		paypal := &fakePaypal{cancelErr: ErrPaypalRequest}
		svc := NewSubscriptionService(db, paypal, "", nil)
		if err := svc.Cancel(ctx, userID); !errors.Is(err, ErrPaypalRequest) {
			t.Fatalf("expected ErrPaypalRequest, got %v", err)
		}
		sub, _ := svc.Get(ctx, userID)
		if sub.Status != models.SubscriptionActive {
			t.Errorf("status = %s, want active", sub.Status)
		}
	})

	t.Run("cancels", func(t *testing.T) {
		db := openTestDB(t)
		userID := uuid.New()
		db.Create(&models.UserSubscription{UserID: &userID, PaypalSubscriptionID: strPtr("I-Y"), Status: models.SubscriptionActive})
		paypal := &fakePaypal{}
		notifier := &recordingNotifier{}
		svc := NewSubscriptionService(db, paypal, "", notifier)
		if err := svc.Cancel(ctx, userID); err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if len(paypal.cancelled) != 1 || paypal.cancelled[0] != "I-Y" {
			t.Errorf("cancelled = %v", paypal.cancelled)
		}
		sub, _ := svc.Get(ctx, userID)
		if sub.Status != models.SubscriptionCancelled {
			t.Errorf("status = %s, want cancelled", sub.Status)
		}
		if len(notifier.sent) != 1 || notifier.sent[0].status != models.SubscriptionCancelled {
			t.Errorf("notifications = %+v", notifier.sent)
		}
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expiredUser, currentUser, openUser := uuid.New(), uuid.New(), uuid.New()
	db.Create(&models.UserSubscription{UserID: &expiredUser, Status: models.SubscriptionActive, ExpiresAt: &past})
	db.Create(&models.UserSubscription{UserID: &currentUser, Status: models.SubscriptionActive, ExpiresAt: &future})
	db.Create(&models.UserSubscription{UserID: &openUser, Status: models.SubscriptionActive})

	notifier := &recordingNotifier{}
	svc := NewSubscriptionService(db, nil, "", notifier)
	svc.now = func() time.Time { return now }

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	for id, want := range map[uuid.UUID]models.SubscriptionStatus{
		expiredUser: models.SubscriptionExpired,
		currentUser: models.SubscriptionActive,
		openUser:    models.SubscriptionActive,
	} {
		sub, _ := svc.Get(ctx, id)
		if sub.Status != want {
			t.Errorf("user %s status = %s, want %s", id, sub.Status, want)
		}
	}
	if len(notifier.sent) != 1 || notifier.sent[0].userID != expiredUser {
		t.Errorf("notifications = %+v", notifier.sent)
	}
}

func TestSweepExpiredSkipsConcurrentRenewal(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	renewed := now.AddDate(0, 1, 0)

	staleUser, renewedUser := uuid.New(), uuid.New()
	db.Create(&models.UserSubscription{UserID: &staleUser, Status: models.SubscriptionActive, ExpiresAt: &past})
	renewing := models.UserSubscription{UserID: &renewedUser, Status: models.SubscriptionActive, ExpiresAt: &past}
	db.Create(&renewing)

	// A payment lands between the sweep's select and its updates.
	renewOnce := true
	err := db.Callback().Query().After("gorm:query").Register("test:renew", func(tx *gorm.DB) {
		if renewOnce && tx.Statement.Table == "user_subscriptions" {
			renewOnce = false
			db.Exec("UPDATE user_subscriptions SET expires_at = ? WHERE id = ?", renewed, renewing.ID)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	notifier := &recordingNotifier{}
	svc := NewSubscriptionService(db, nil, "", notifier)
	svc.now = func() time.Time { return now }

	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	renewOnce = false

	var row models.UserSubscription
	db.First(&row, "id = ?", renewing.ID)
	if row.Status != models.SubscriptionActive {
		t.Errorf("renewed row status = %s, want active", row.Status)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].userID != staleUser {
		t.Errorf("notifications = %+v", notifier.sent)
	}
}
