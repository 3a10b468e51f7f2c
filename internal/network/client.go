package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/engine"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// Guard action types.
const (
	ActionArm     = "ARM"
	ActionSelect  = "SELECT"
	ActionCapture = "CAPTURE"
	ActionStop    = "STOP"
)

// GuardAction represents an incoming command from a guard's console.
type GuardAction struct {
	Type     string `json:"type"`
	InmateID string `json:"inmate_id,omitempty"`
}

// Client is one guard connection. Added Hub ref to allow unregister.
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	lastActionTime time.Time
	snapshotSeq    int64 // owned by Hub.Run
}

// NewClient creates a new WebSocket client and returns it.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, hub.sendBuffer),
	}
}

// Register adds the client to the hub.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		close(c.send)
	}
}

// ReadPump pumps messages from the websocket connection to the engine.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Err(err, "WebSocket read failed")
			}
			break
		}
		metrics.RecordWSMessage(true)

		var action GuardAction
		if err := json.Unmarshal(message, &action); err != nil {
			c.hub.logger.Warn("Failed to parse GuardAction from WebSocket. err: " + err.Error())
			c.sendError("invalid action")
			continue
		}

		c.handleGuardAction(action)
	}
}

func (c *Client) handleGuardAction(action GuardAction) {
	// Rate limiting; SELECT and CAPTURE are exempt so a guard can work through a batch of escapees.
	if action.Type != ActionSelect && action.Type != ActionCapture {
		if time.Since(c.lastActionTime) < c.hub.minActionInterval {
			c.hub.logger.Warn("Rate limit exceeded for guard action " + action.Type)
			c.sendError("too many requests")
			return
		}
		c.lastActionTime = time.Now()
	}

	ctrl := c.hub.ctrl
	switch action.Type {
	case ActionArm:
		if _, err := ctrl.Arm(); err != nil {
			c.sendError(err.Error())
		}
	case ActionStop:
		ctrl.Stop()
	case ActionCapture:
		ctrl.CaptureEscapee(action.InmateID)
	case ActionSelect:
		detail, err := ctrl.Select(action.InmateID)
		if errors.Is(err, engine.ErrInmateNotFound) {
			c.sendError(err.Error())
			return
		}
		c.sendMessage(Message{Type: MsgTypeDetail, Timestamp: time.Now().Unix(), Payload: detail})
	default:
		c.hub.logger.Warn("Unknown GuardAction type: " + action.Type)
		c.sendError("unknown action " + action.Type)
	}
}

func (c *Client) sendError(msg string) {
	c.sendMessage(Message{Type: MsgTypeError, Timestamp: time.Now().Unix(), Payload: map[string]string{"error": msg}})
}

// sendMessage queues a reply for this client only. It drops the reply if the buffer is full
// or the hub already let the client go.
func (c *Client) sendMessage(m Message) {
	b, err := json.Marshal(m)
	if err != nil {
		c.hub.logger.Err(err, "Failed to serialize WebSocket reply")
		return
	}
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			metrics.RecordWSMessage(false)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the guard console is served from another origin
	},
}

// ServeWS upgrades guard connections and starts their pumps.
func ServeWS(hub *Hub, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Err(err, "Failed to upgrade websocket connection")
			return
		}

		client := NewClient(hub, conn)
		client.Register()

		// Allow collection of memory referenced by the caller by doing all work in
		// new goroutines.
		go client.WritePump()
		go client.ReadPump()
	}
}
