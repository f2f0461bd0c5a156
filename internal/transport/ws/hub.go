// Package ws adapts the broadcast.Broadcaster to gorilla/websocket
// connections: one write pump per connection, following the corpus's
// ping/write-loop shape, plus a read pump for subscribe/unsubscribe
// control messages.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sawpanic/aggrun/internal/broadcast"
	"github.com/sawpanic/aggrun/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// controlMessage is the shape of subscribe_tokens/unsubscribe_tokens
// messages sent by clients.
type controlMessage struct {
	Type   string   `json:"type"`
	Tokens []string `json:"tokens"`
}

// Hub upgrades HTTP connections to websockets and wires each one to the
// Broadcaster for the lifetime of the connection.
type Hub struct {
	broadcaster *broadcast.Broadcaster
	logger      zerolog.Logger
}

// New builds a Hub over bcast.
func New(bcast *broadcast.Broadcaster, logger zerolog.Logger) *Hub {
	return &Hub{broadcaster: bcast, logger: logger}
}

// ServeHTTP upgrades the request to a websocket connection, registers it
// with the Broadcaster, and runs its read/write pumps until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id, outbox := h.broadcaster.OnConnect()
	defer h.broadcaster.OnDisconnect(id)

	done := make(chan struct{})
	go h.writePump(conn, outbox, done)
	h.readPump(conn, id, done)
}

// writePump relays events from outbox to the socket and sends periodic
// pings. It exits when outbox is closed (OnDisconnect) or done fires
// (the read pump detected a closed connection).
func (h *Hub) writePump(conn *websocket.Conn, outbox <-chan domain.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case event, ok := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn().Err(err).Str("kind", string(event.Kind)).Msg("failed to encode event")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump drives ping/pong keepalive and handles inbound subscription
// control messages until the connection errors or closes.
func (h *Hub) readPump(conn *websocket.Conn, id broadcast.ConnID, done chan struct{}) {
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.logger.Debug().Err(err).Msg("ignoring malformed control message")
			continue
		}

		switch msg.Type {
		case "subscribe_tokens":
			h.broadcaster.Subscribe(id, msg.Tokens)
		case "unsubscribe_tokens":
			h.broadcaster.Unsubscribe(id, msg.Tokens)
		}
	}
}
