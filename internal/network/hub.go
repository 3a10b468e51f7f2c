package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/engine"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

// Controller is the part of the engine the network layer drives.
type Controller interface {
	Arm() (engine.Cycle, error)
	Stop() bool
	CaptureEscapee(id string) bool
	Select(id string) (engine.Detail, error)
	Inspect(id string) (engine.Detail, error)
	State() engine.Snapshot
	Inmates() []engine.RosterEntry
}

// Message types pushed to guards.
const (
	MsgTypeEvent    = "EVENT"
	MsgTypeSnapshot = "SNAPSHOT"
	MsgTypeDetail   = "DETAIL"
	MsgTypeError    = "ERROR"
)

// Message is the envelope for everything written to a WebSocket.
type Message struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SnapshotPayload is sent to a guard when it connects.
type SnapshotPayload struct {
	State   engine.Snapshot      `json:"state"`
	Inmates []engine.RosterEntry `json:"inmates"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *logger.Logger

	ctrl              Controller
	sendBuffer        int
	minActionInterval time.Duration
}

// outbound is one serialized event and its position in the log.
type outbound struct {
	seq  int64
	data []byte
}

// HubOptions tunes client buffering and rate limiting.
type HubOptions struct {
	SendBuffer        int
	MinActionInterval time.Duration
}

// NewHub initializes a new WebSocket Hub.
func NewHub(ctrl Controller, log *logger.Logger, opts HubOptions) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Hub{
		broadcast:         make(chan outbound),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		done:              make(chan struct{}),
		clients:           make(map[*Client]bool),
		logger:            log,
		ctrl:              ctrl,
		sendBuffer:        opts.SendBuffer,
		minActionInterval: opts.MinActionInterval,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
			snap := h.snapshot()
			// Events up to here are already in the snapshot; the poller may still be behind.
			client.snapshotSeq = snap.State.EventSeq
			client.sendMessage(Message{Type: MsgTypeSnapshot, Timestamp: time.Now().Unix(), Payload: snap})
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if message.seq <= client.snapshotSeq {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					h.logger.Warn("WebSocket client too slow; dropping it")
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop requires mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	metrics.RecordWSConnection(-1)
}

// ClientCount returns the number of connected guards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshot() SnapshotPayload {
	return SnapshotPayload{State: h.ctrl.State(), Inmates: h.ctrl.Inmates()}
}

// BroadcastEvent takes a GameEvent, serializes it to JSON, and sends it to all connected clients.
func (h *Hub) BroadcastEvent(event events.GameEvent) {
	payload, err := json.Marshal(Message{Type: MsgTypeEvent, Timestamp: event.Timestamp.Unix(), Payload: event})
	if err != nil {
		h.logger.Err(err, "Failed to serialize GameEvent for WebSocket broadcast")
		return
	}
	select {
	case h.broadcast <- outbound{seq: event.Seq, data: payload}:
	case <-h.done:
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new events to the Hub.
// The Hub runs independently from the Engine and never holds its lock.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	go func() {
		pollInterval := time.NewTicker(interval)
		defer pollInterval.Stop()

		lastProcessedEvent := eventLog.Len()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				newEvents := eventLog.Since(lastProcessedEvent)
				for _, event := range newEvents {
					h.BroadcastEvent(event)
				}
				lastProcessedEvent += len(newEvents)
			}
		}
	}()
}
