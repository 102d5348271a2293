package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/hallway/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/hallway/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the browser client is served from arbitrary origins, matching the
	// wide-open CORS policy on the JSON endpoints
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket admits one realtime connection. The caller's email is
// re-derived from the validated session cookie rather than trusted from the
// client; the client-asserted username must equal the stored mapping.
func (h *httpHandler) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	claims, sessionErr := h.sessions.ValidateRequest(c.Request)
	if sessionErr != nil {
		h.rejectConnection(conn, "authentication required")
		return
	}

	assertedUsername := c.Query("username")
	storedUsername, err := h.users.Username(c.Request.Context(), claims.Email)
	if err != nil {
		h.logger.Error("admission lookup failed", zap.Error(err))
		h.rejectConnection(conn, "authentication failed")
		return
	}
	if storedUsername == "" || assertedUsername == "" || assertedUsername != storedUsername {
		h.rejectConnection(conn, "authentication failed")
		return
	}

	identity := users.Identity{
		Email:    claims.Email,
		Name:     claims.Name,
		Username: storedUsername,
	}

	history, err := h.chat.ListRecent(c.Request.Context())
	if err != nil {
		h.logger.Error("history replay failed", zap.Error(err))
		h.rejectConnection(conn, "history unavailable")
		return
	}

	client := hub.NewClient(conn, identity, h.hub, h.logger)

	// init is queued ahead of registration so it reaches the client before
	// any broadcast traffic
	client.Queue(hub.InitEvent(history))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.chat.Submit)
}

// rejectConnection emits the single errorMsg event and terminates the
// connection before any message traffic is accepted.
func (h *httpHandler) rejectConnection(conn *websocket.Conn, reason string) {
	h.metrics.AdmissionRejected()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = conn.WriteJSON(hub.ErrorEvent(reason))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
	conn.Close()
}
