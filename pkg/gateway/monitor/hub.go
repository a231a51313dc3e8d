// Package monitor streams live interview events to operators over
// websockets.
package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-recruiter/pkg/core/interview"
)

type Config struct {
	// Buffer is the per-client outbound queue length. A client whose queue
	// is full misses events rather than slowing the broadcaster.
	Buffer       int
	PingInterval time.Duration
	WriteTimeout time.Duration
	// PongTimeout closes clients that stop answering pings.
	PongTimeout time.Duration
}

// Hub fans interview events out to connected monitors. It implements
// interview.Broadcaster.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	sessionID string
	send      chan []byte
	done      chan struct{}
	once      sync.Once
	dropped   int
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 20 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 2 * cfg.PingInterval
	}
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Broadcast never blocks.
func (h *Hub) Broadcast(ev interview.Event) {
	var payload []byte

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.sessionID != "" && c.sessionID != ev.SessionID {
			continue
		}
		if payload == nil {
			b, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("monitor event encode failed", "type", ev.Type, "error", err)
				return
			}
			payload = b
		}
		select {
		case c.send <- payload:
		default:
			c.dropped++
		}
	}
}

// Clients returns the number of connected monitors.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every monitor and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	dropped := c.dropped
	h.mu.Unlock()
	c.close()
	if dropped > 0 {
		h.logger.Warn("monitor client missed events", "dropped", dropped, "session_id", c.sessionID)
	}
}

// ServeHTTP upgrades to a websocket. ?session_id= restricts the stream to
// one interview.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{
		sessionID: r.URL.Query().Get("session_id"),
		send:      make(chan []byte, h.cfg.Buffer),
		done:      make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteTimeout))
		return
	}
	defer h.unregister(c)

	go h.readLoop(conn, c)
	h.writeLoop(conn, c)
}

// readLoop discards client frames; it exists to process control frames
// and notice disconnects.
func (h *Hub) readLoop(conn *websocket.Conn, c *client) {
	defer c.close()
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client) {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteTimeout))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		case msg := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
