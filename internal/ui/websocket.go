// Package ui provides the default-deployment uibridge.Transport: a
// gorilla/websocket broadcast server that fans UI messages out to every
// connected browser client. Grounded on
// tphakala-birdnet-go/internal/httpcontroller/handlers/websocket.go's
// connection-registry-plus-broadcast shape, trimmed to the Flow UI
// bridge's simpler fire-and-forget semantics (spec §4.7): messages are
// JSON-encoded and delivery is best-effort. Each client write is bounded
// by a write deadline, and a client whose write fails is dropped.
package ui

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/currawong-project/libcw-sub004/internal/flow/uibridge"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// client pairs a connection with a per-connection write mutex and a
// stable identity for log lines, so a dropped or noisy client can be
// named without printing its remote address.
type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

// wireMessage is the JSON envelope sent to each client.
type wireMessage struct {
	WidgetID    uint32 `json:"widgetId"`
	ContainerID uint32 `json:"containerId"`
	LabelID     uint32 `json:"labelId"`
	Op          string `json:"op"`
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	Enabled     bool   `json:"enabled"`
	Visible     bool   `json:"visible"`
}

// WebsocketTransport implements uibridge.Transport by broadcasting each
// message to every currently connected client. Writes never block on a
// slow client past writeTimeout; a client that can't keep up is dropped.
type WebsocketTransport struct {
	log      *telemetry.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	writeTimeout time.Duration
}

// NewWebsocketTransport creates a transport ready to accept connections
// at its ServeHTTP handler. allowedOrigins, when non-empty, restricts
// the handshake's Origin check; an empty slice allows any origin (the
// caller is expected to gate this behind its own auth middleware, as
// the teacher's server does).
func NewWebsocketTransport(log *telemetry.Logger, allowedOrigins []string) *WebsocketTransport {
	t := &WebsocketTransport{
		log:          log,
		clients:      make(map[*websocket.Conn]*client),
		writeTimeout: time.Second,
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return t
}

// ServeHTTP upgrades the request to a websocket and registers the
// resulting connection as a broadcast recipient until it disconnects.
func (t *WebsocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if t.log != nil {
			t.log.Errorf("ui websocket upgrade: %v", err)
		}
		return
	}

	c := &client{id: uuid.New(), conn: conn}
	t.mu.Lock()
	t.clients[conn] = c
	t.mu.Unlock()
	if t.log != nil {
		t.log.Infof("ui websocket: client %s connected", c.id)
	}

	go t.readUntilClose(conn)
}

// readUntilClose drains and discards inbound frames (the Flow UI
// bridge is output-only) purely to detect disconnection and respond to
// control frames, as gorilla/websocket requires a reader pump.
func (t *WebsocketTransport) readUntilClose(conn *websocket.Conn) {
	defer t.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (t *WebsocketTransport) drop(conn *websocket.Conn) {
	t.mu.Lock()
	delete(t.clients, conn)
	t.mu.Unlock()
	conn.Close()
}

// Send implements uibridge.Transport by broadcasting msg to every
// connected client. A client whose write fails or times out is
// dropped; Send itself never returns an error for a single bad client,
// only for total encode failure.
func (t *WebsocketTransport) Send(msg uibridge.Message) error {
	wm := wireMessage{Op: string(msg.Op)}
	if msg.UI != nil {
		wm.WidgetID = msg.UI.WidgetID
		wm.ContainerID = msg.UI.ContainerID
		wm.LabelID = msg.UI.LabelID
		wm.Enabled = msg.UI.Enabled
		wm.Visible = msg.UI.Visible
	}
	wm.Kind = msg.Value.Kind().String()
	wm.Value = msg.Value.String()

	payload, err := json.Marshal(wm)
	if err != nil {
		return err
	}

	t.mu.RLock()
	targets := make([]*client, 0, len(t.clients))
	for _, c := range t.clients {
		targets = append(targets, c)
	}
	t.mu.RUnlock()

	for _, c := range targets {
		c.mu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.mu.Unlock()
		if err != nil {
			if t.log != nil {
				t.log.Warnf("ui websocket: dropping client %s after write error: %v", c.id, err)
			}
			t.drop(c.conn)
		}
	}
	return nil
}

// ClientCount reports the number of currently connected clients.
func (t *WebsocketTransport) ClientCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}
