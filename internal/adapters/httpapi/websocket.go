package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Views carry no credentials
	},
}

// streamSession handles GET /ws/sessions/:id. It pushes the session view
// whenever more trades become visible and closes once the session is complete.
func (h *Handler) streamSession(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	// Reject unknown sessions before upgrading so clients get a plain 404.
	snap, err := h.engine.SessionState(ctx, id)
	if err != nil {
		h.fail(c, "streamSession", err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn(ctx, "streamSession: WebSocket upgrade failed", map[string]interface{}{"sessionID": id, "error": err.Error()})
		return
	}
	defer conn.Close()

	// Reader loop: detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	sent := -1
	for {
		if n := len(snap.Visible); n != sent || snap.Complete {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toSession(snap)); err != nil {
				h.logger.Debug(ctx, "streamSession: Write failed", map[string]interface{}{"sessionID": id, "error": err.Error()})
				return
			}
			sent = n
		}
		if snap.Complete {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete"),
				time.Now().Add(writeWait))
			return
		}

		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err = h.engine.SessionState(ctx, id)
		if err != nil {
			// Reset while streaming.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session unavailable"),
				time.Now().Add(writeWait))
			return
		}
	}
}
