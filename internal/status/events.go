package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/ecconf/internal/interfaces"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Read-only feed on a local port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type MessageType string

const (
	// MessageTypeStatus carries a full ConfStatus snapshot.
	MessageTypeStatus MessageType = "conf_status"
	// MessageTypeState reports a lifecycle transition.
	MessageTypeState MessageType = "conf_state"
)

type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data"`
}

type StateData struct {
	State    string `json:"state"`
	Previous string `json:"previous_state"`
	Error    string `json:"error,omitempty"`
}

func NewMessage(msgType MessageType, data any) Message {
	return Message{Type: msgType, Timestamp: time.Now(), Data: data}
}

func NewStateMessage(state, previous string, err error) Message {
	d := StateData{State: state, Previous: previous}
	if err != nil {
		d.Error = err.Error()
	}
	return NewMessage(MessageTypeState, d)
}

// Hub fans lifecycle events out to websocket subscribers. New
// subscribers get the current status first.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu       sync.RWMutex
	provider interfaces.LifecycleManager
	logger   *zap.Logger
}

func NewHub(provider interfaces.LifecycleManager, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		provider:   provider,
		logger:     logger,
	}
}

// Run serves the hub until ctx is done, then drops every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
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
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Event subscriber registered",
				zap.String("remote_addr", c.conn.RemoteAddr().String()),
				zap.Int("total_clients", n))
			if h.provider != nil {
				h.deliver(c, NewMessage(MessageTypeStatus, h.provider.GetCurrentStatus()))
			}

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				h.deliverLocked(c, msg)
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) deliver(c *client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		h.deliverLocked(c, msg)
	}
}

func (h *Hub) deliverLocked(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal event", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		close(c.send)
		delete(h.clients, c)
		h.logger.Warn("Subscriber too slow, dropping",
			zap.String("remote_addr", c.conn.RemoteAddr().String()))
	}
}

// Broadcast queues msg for every subscriber without blocking.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Event queue full, message dropped", zap.String("message_type", string(msg.Type)))
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades the request and subscribes the connection.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump only services control frames; subscribers have nothing to say.
func (c *client) readPump() {
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
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
