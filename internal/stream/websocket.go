package stream

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/manozcodes/mgpt/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSHandler is the event channel: one WebSocket per client, every
// broadcast event written as a JSON envelope text frame.
type WSHandler struct {
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a WebSocket event handler.
func NewWSHandler(b *Broadcaster) *WSHandler {
	return &WSHandler{
		broadcaster: b,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Subscribe before the handshake completes so a client that sees the
	// connection open receives every event emitted from then on.
	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("Client connected: %s (total: %d)", r.RemoteAddr, h.broadcaster.ListenerCount())
	defer log.Printf("Client disconnected: %s", r.RemoteAddr)

	// Clients send nothing we act on; reading keeps pongs and close frames flowing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket read error: %v", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev := <-listener.C:
			data, err := events.Encode(ev)
			if err != nil {
				log.Printf("Failed to encode %s for WebSocket: %v", ev.EventName(), err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Failed to send event to WebSocket client: %v", err)
				return
			}
		}
	}
}
