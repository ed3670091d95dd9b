package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/vnkhanh/aetherstudy-backend/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleUserWebSocket opens the per-user channel used for subscription pushes.
func (h *Hub) HandleUserWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		return
	}
	claims, err := utils.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	userID := claims.UserID()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	log := logrus.WithField("user_id", userID)
	log.Info("User WS connected")

	client := h.Register(userID, conn)
	defer h.Unregister(userID, conn)

	if msg, err := json.Marshal(gin.H{"type": "connected", "message": "Connected to user WebSocket"}); err == nil {
		client.Send <- msg
	}
	go writePump(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	log.Info("User WS disconnected")
}
