package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// wsMessage is one frame on the WebSocket stream. Type is "hello" or an
// event kind.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// wsEvents streams the same messages as the SSE endpoint over a WebSocket.
// The client never sends anything but control frames.
func (h *Handlers) wsEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("api: websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id := uuid.New().String()
	ch := h.events.Subscribe(id)
	defer h.events.Unsubscribe(id)

	// Read pump: handles pong and close frames, ends the stream on error.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("api: websocket read error", "id", id, "err", err)
				}
				return
			}
		}
	}()

	send := func(msg wsMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg) == nil
	}

	if !send(wsMessage{Type: "hello", Data: hello{Settings: h.svc.Snapshot(), Access: h.svc.Access()}}) {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok || !send(wsMessage{Type: string(ev.Kind), Data: ev}) {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
