package controllers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/services"
)

func postWebhook(env *testEnv, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/paypal", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return env.send(req, nil)
}

func TestSubscriptionWithoutRow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newUser("alice@example.com")

	w := env.do(&alice, http.MethodGet, "/api/subscription", nil)
	expectStatus(t, w, http.StatusOK)
	view := decode[services.SubscriptionView](t, w)
	if view.IsPro || view.Status != models.SubscriptionInactive {
		t.Errorf("unexpected view %+v", view)
	}

	w = env.do(&alice, http.MethodPost, "/api/subscription/cancel", nil)
	expectStatus(t, w, http.StatusBadRequest)
	if msg := decode[map[string]any](t, w)["error"]; msg != "No active subscription found" {
		t.Errorf("error = %v", msg)
	}

	expectStatus(t, env.do(&alice, http.MethodPost, "/api/subscription/activate", map[string]string{}), http.StatusBadRequest)
}

func TestCancelSubscriptionPaypalFailure(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newUser("alice@example.com")
	paypalID := "I-CANCEL"
	future := time.Now().Add(24 * time.Hour)
	env.db.Create(&models.UserSubscription{
		UserID:               &alice.id,
		PaypalSubscriptionID: &paypalID,
		Status:               models.SubscriptionActive,
		ExpiresAt:            &future,
	})

	w := env.do(&alice, http.MethodPost, "/api/subscription/cancel", nil)
	expectStatus(t, w, http.StatusBadRequest)
	want := "Failed to cancel PayPal subscription: PayPal is not configured"
	if msg := decode[map[string]any](t, w)["error"]; msg != want {
		t.Errorf("error = %v, want %q", msg, want)
	}
}

func TestPaypalWebhookEndpoint(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newUser("alice@example.com")
	// The auth middleware mirrors the user so the webhook can match the email.
	expectStatus(t, env.do(&alice, http.MethodGet, "/api/subscription", nil), http.StatusOK)

	w := postWebhook(env, `{"event_type": ""}`)
	expectStatus(t, w, http.StatusBadRequest)
	if decode[map[string]any](t, w)["success"] != false {
		t.Error("expected success=false")
	}

	client := env.hub.Register(alice.id.String(), nil)
	defer env.hub.Unregister(alice.id.String(), nil)

	activation := `{
		"id": "WH-100",
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"resource_type": "subscription",
		"resource": {
			"id": "I-ALICE",
			"status": "ACTIVE",
			"subscriber": {"email_address": "Alice@Example.com"},
			"billing_info": {"next_billing_time": "2099-01-01T00:00:00Z"}
		}
	}`
	w = postWebhook(env, activation)
	expectStatus(t, w, http.StatusOK)
	if decode[map[string]any](t, w)["message"] != "Webhook processed successfully" {
		t.Errorf("body = %s", w.Body)
	}
	select {
	case msg := <-client.Send:
		if !bytes.Contains(msg, []byte(`"subscription_changed"`)) {
			t.Errorf("push = %s", msg)
		}
	default:
		t.Error("expected a websocket push")
	}

	view := decode[services.SubscriptionView](t, env.do(&alice, http.MethodGet, "/api/subscription", nil))
	if !view.IsPro || view.PaypalSubscriptionID == nil || *view.PaypalSubscriptionID != "I-ALICE" {
		t.Errorf("unexpected view %+v", view)
	}

	// Redelivery is acknowledged without a second log row.
	expectStatus(t, postWebhook(env, activation), http.StatusOK)

	expectStatus(t, postWebhook(env, `{
		"id": "WH-101",
		"event_type": "BILLING.SUBSCRIPTION.CANCELLED",
		"resource": {"id": "I-ALICE"}
	}`), http.StatusOK)
	view = decode[services.SubscriptionView](t, env.do(&alice, http.MethodGet, "/api/subscription", nil))
	if view.IsPro || view.Status != models.SubscriptionCancelled {
		t.Errorf("unexpected view after cancel %+v", view)
	}

	var logs int64
	env.db.Model(&models.PaymentLog{}).Count(&logs)
	if logs != 2 {
		t.Errorf("payment logs = %d, want 2", logs)
	}
}

func TestPaymentLogsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.newUser("admin@example.com")

	postWebhook(env, `{"id":"WH-1","event_type":"BILLING.SUBSCRIPTION.EXPIRED","resource":{"id":"I-1"}}`)
	postWebhook(env, `{"id":"WH-2","event_type":"BILLING.SUBSCRIPTION.SUSPENDED","resource":{"id":"I-2"}}`)

	expectStatus(t, env.do(nil, http.MethodGet, "/api/admin/payment-logs", nil), http.StatusUnauthorized)
	expectStatus(t, env.do(&admin, http.MethodGet, "/api/admin/payment-logs", nil), http.StatusForbidden)

	env.db.Create(&models.UserRoleRecord{UserID: admin.id, Role: models.RoleAdmin})

	w := env.do(&admin, http.MethodGet, "/api/admin/payment-logs", nil)
	expectStatus(t, w, http.StatusOK)
	if count := decode[map[string]any](t, w)["count"]; count != float64(2) {
		t.Errorf("count = %v, want 2", count)
	}

	w = env.do(&admin, http.MethodGet, "/api/admin/payment-logs?subscription_id=I-2", nil)
	logs := decode[struct {
		PaymentLogs []models.PaymentLog `json:"payment_logs"`
	}](t, w).PaymentLogs
	if len(logs) != 1 || logs[0].EventType == nil || *logs[0].EventType != "BILLING.SUBSCRIPTION.SUSPENDED" {
		t.Errorf("filtered logs = %+v", logs)
	}
	expectStatus(t, env.do(&admin, http.MethodGet, "/api/admin/payment-logs?limit=0", nil), http.StatusBadRequest)

	// Admins are always pro.
	view := decode[services.SubscriptionView](t, env.do(&admin, http.MethodGet, "/api/subscription", nil))
	if !view.IsPro || !view.IsAdmin {
		t.Errorf("unexpected admin view %+v", view)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(nil, http.MethodGet, "/health", nil)
	expectStatus(t, w, http.StatusOK)
	if decode[map[string]any](t, w)["db"] != "ok" {
		t.Errorf("body = %s", w.Body)
	}
	expectStatus(t, env.do(nil, http.MethodGet, "/ping", nil), http.StatusOK)
}
