package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/campusattend/console/internal/notifier"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Message types pushed to browsers
const (
	MsgRender  = "render"
	MsgNotify  = "notify"
	MsgDismiss = "dismiss"
	MsgState   = "state"
)

// Message is one websocket frame.
type Message struct {
	Type         string                 `json:"type"`
	Timestamp    time.Time              `json:"timestamp"`
	Region       string                 `json:"region,omitempty"`
	HTML         string                 `json:"html,omitempty"`
	Seq          uint64                 `json:"seq,omitempty"`
	Notification *notifier.Notification `json:"notification,omitempty"`
	View         string                 `json:"view,omitempty"`
	From         string                 `json:"from,omitempty"`
	State        string                 `json:"state,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

// Hub fans console events out to every connected browser.
type Hub struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient

	broadcast  chan Message
	register   chan *wsClient
	unregister chan string
	done       chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a hub. Run must be started for messages to flow.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger.With().Str("component", "hub").Logger(),
		clients:    make(map[string]*wsClient),
		broadcast:  make(chan Message, sendBuffer),
		register:   make(chan *wsClient),
		unregister: make(chan string),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Str("client", c.id).Int("total", total).Msg("Browser connected")

		case id := <-h.unregister:
			h.mu.Lock()
			if c, ok := h.clients[id]; ok {
				delete(h.clients, id)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Str("client", id).Int("total", total).Msg("Browser disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn().Str("client", c.id).Str("type", msg.Type).Msg("Browser too slow, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends the event loop and disconnects every browser.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every browser. It never blocks; when the queue
// is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.logger.Warn().Str("type", msg.Type).Msg("Broadcast queue full, dropping message")
	}
}

// Serve upgrades the request and pumps messages until the browser leaves.
// initial is sent before any broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial []Message) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &wsClient{
		id:   r.RemoteAddr + "-" + uuid.NewString()[:8],
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	for _, msg := range initial {
		c.send <- msg
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c.id:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Str("client", c.id).Msg("Websocket read error")
			}
			return
		}

		// Browsers act through the HTTP endpoints; the socket is push only.
		h.logger.Debug().Str("client", c.id).Str("type", msg.Type).Msg("Ignoring browser message")
	}
}

func (h *Hub) writePump(c *wsClient) {
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
			if err := c.conn.WriteJSON(msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.logger.Debug().Err(err).Str("client", c.id).Msg("Websocket write error")
				}
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
