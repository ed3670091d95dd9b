package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vnkhanh/aetherstudy-backend/models"
	"github.com/vnkhanh/aetherstudy-backend/utils"
)

func TestHubRegisterAndSend(t *testing.T) {
	h := NewHub()
	client := h.Register("u1", nil)

	if n := h.SendToUser("u1", []byte("hello")); n != 1 {
		t.Fatalf("SendToUser() = %d, want 1", n)
	}
	if got := string(<-client.Send); got != "hello" {
		t.Errorf("received %q", got)
	}
	if n := h.SendToUser("u2", []byte("hello")); n != 0 {
		t.Errorf("SendToUser() to unknown user = %d", n)
	}

	h.Unregister("u1", nil)
	if h.Connections("u1") != 0 {
		t.Error("expected no connections after unregister")
	}
	if _, open := <-client.Send; open {
		t.Error("send channel should be closed")
	}
}

func TestHubSubscriptionChanged(t *testing.T) {
	h := NewHub()
	userID := uuid.New()
	client := h.Register(userID.String(), nil)

	h.SubscriptionChanged(userID, models.SubscriptionActive)

	var msg SubscriptionChangedMessage
	if err := json.Unmarshal(<-client.Send, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "subscription_changed" || msg.Status != models.SubscriptionActive {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestHandleUserWebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("ws-secret")

	h := NewHub()
	r := gin.New()
	r.GET("/ws/user", h.HandleUserWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/user"

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatal("expected dial to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected 401, got %v", resp)
		}
	})

	userID := uuid.New()
	token, _ := utils.GenerateToken(userID.String(), "ws@example.com", time.Hour)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello map[string]string
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read connected message: %v", err)
	}
	if hello["type"] != "connected" {
		t.Errorf("unexpected first message %v", hello)
	}

	h.SubscriptionChanged(userID, models.SubscriptionCancelled)
	var msg SubscriptionChangedMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read push: %v", err)
	}
	if msg.Status != models.SubscriptionCancelled {
		t.Errorf("status = %s", msg.Status)
	}
}
