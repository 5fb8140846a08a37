package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/jaakkos/agentbar/internal/app"
)

// EventTasksUpdated is the message type pushed after every registry change.
const EventTasksUpdated = "tasks_updated"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

// Message is one WebSocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventHub fans registry snapshots out to WebSocket clients. It implements
// app.Triggerable; Trigger never blocks and coalesces bursts into one push.
type EventHub struct {
	snapshot   func() app.Snapshot
	logger     *log.Logger
	clients    map[*eventClient]bool
	register   chan *eventClient
	unregister chan *eventClient
	trigger    chan struct{}
	started    chan struct{}
	done       chan struct{}
	startOnce  sync.Once
	startWait  time.Duration
	mu         sync.RWMutex
}

type eventClient struct {
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte
}

// NewEventHub creates a hub that reads snapshots from snapshot (typically Registry.List).
func NewEventHub(snapshot func() app.Snapshot, logger *log.Logger) *EventHub {
	return &EventHub{
		snapshot:   snapshot,
		logger:     logger,
		clients:    make(map[*eventClient]bool),
		register:   make(chan *eventClient),
		unregister: make(chan *eventClient),
		trigger:    make(chan struct{}, 1),
		started:    make(chan struct{}),
		done:       make(chan struct{}),
		startWait:  2 * time.Second,
	}
}

// Trigger schedules a push of the current snapshot.
func (h *EventHub) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run serves register, unregister and trigger events until ctx is cancelled.
// Connections are refused with 503 until Run has started.
func (h *EventHub) Run(ctx context.Context) {
	h.startOnce.Do(func() { close(h.started) })
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			// New clients get the current view straight away.
			if data, ok := h.encode(); ok {
				select {
				case c.send <- data:
				default:
				}
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case <-h.trigger:
			if h.ClientCount() == 0 {
				continue
			}
			data, ok := h.encode()
			if !ok {
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client; drop it rather than stall the others.
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *EventHub) encode() ([]byte, bool) {
	data, err := json.Marshal(Message{Type: EventTasksUpdated, Data: h.snapshot()})
	if err != nil {
		h.logger.Error("encode event", "err", err)
		return nil, false
	}
	return data, true
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // loopback only; the tray UI is served from its own origin
	},
}

// ServeHTTP upgrades the request and attaches the client to the hub.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.started:
	case <-r.Context().Done():
		return
	case <-time.After(h.startWait):
		http.Error(w, "event stream not running", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &eventClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump drains client frames so pongs and close messages are processed.
func (c *eventClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket closed", "err", err)
			}
			return
		}
	}
}

func (c *eventClient) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
