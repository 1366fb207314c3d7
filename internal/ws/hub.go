package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send subscriptions
	sendBufferSize = 64               // messages in each client send channel
)

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected dashboard.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte // buffered outbound message queue
	subject string      // JWT subject, "" when anonymous

	mu     sync.Mutex
	topics map[MsgType]bool // nil = every topic
}

// wants reports whether the client subscribed to topic.
func (c *Client) wants(topic MsgType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics == nil || c.topics[topic]
}

func (c *Client) setTopics(topics []MsgType) {
	set := make(map[MsgType]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	c.mu.Lock()
	c.topics = set
	c.mu.Unlock()
}

type outbound struct {
	topic MsgType
	data  []byte
}

type directMsg struct {
	client *Client
	data   []byte
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub maintains the set of dashboard clients and fans out alerts.
// Run() must be started before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// channels consumed by Run()
	broadcast  chan outbound
	direct     chan directMsg
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	// Dashboard token key. Empty = anonymous clients allowed; otherwise a
	// valid HS256 ?token= is required.
	jwtSecret []byte

	upgrader websocket.Upgrader
	logger   *slog.Logger

	// onCount is called with the client count after every change.
	onCount func(int)
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(jwtSecret []byte, allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		direct:     make(chan directMsg, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		jwtSecret:  jwtSecret,
		logger:     logger.With("component", "ws_hub"),
		onCount:    func(int) {},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// OnClientCount registers a callback for client count changes (metrics).
func (h *Hub) OnClientCount(fn func(int)) {
	if fn != nil {
		h.onCount = fn
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run: hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration, and broadcast events
// sequentially until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.onCount(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.onCount(n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.onCount(n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(msg.topic) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow client: drop this message for it.
				}
			}
			h.mu.RUnlock()

		case d := <-h.direct:
			h.mu.RLock()
			if h.clients[d.client] {
				select {
				case d.client.send <- d.data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs: HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs authenticates the caller (when a secret is configured), upgrades the
// request and starts the read/write pumps.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	var subject string
	if len(h.jwtSecret) > 0 {
		var ok bool
		subject, ok = h.parseJWT(r.URL.Query().Get("token"))
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		subject: subject,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// parseJWT validates an HS256 token and returns its subject.
func (h *Hub) parseJWT(tokenString string) (string, bool) {
	if tokenString == "" {
		return "", false
	}
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return h.jwtSecret, nil
	})
	if err != nil || !tok.Valid {
		return "", false
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and pings every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles pongs and subscription requests. When the connection drops
// the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("ws_unexpected_close", "subject", c.subject, "err", err)
			}
			return
		}
		c.handleRequest(data)
	}
}

// handleRequest applies a subscribe request or answers with an ErrorMessage.
func (c *Client) handleRequest(data []byte) {
	var req SubscribeRequest
	if err := json.Unmarshal(data, &req); err != nil || req.Type != MsgTypeSubscribe {
		c.hub.sendTo(c, ErrorMessage{Type: MsgTypeError, Code: "BAD_REQUEST", Message: "expected a subscribe request"})
		return
	}
	for _, t := range req.Topics {
		if !isTopic(t) {
			c.hub.sendTo(c, ErrorMessage{Type: MsgTypeError, Code: "UNKNOWN_TOPIC", Message: "unknown topic " + string(t)})
			return
		}
	}
	c.setTopics(req.Topics)
	c.hub.logger.Debug("ws_subscribed", "subject", c.subject, "topics", req.Topics)
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers: implement service.Broadcaster
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastNewMarket serialises and broadcasts a NewMarketMessage.
func (h *Hub) BroadcastNewMarket(msg NewMarketMessage) {
	h.broadcastJSON(MsgTypeNewMarket, msg)
}

// BroadcastLargeTrade serialises and broadcasts a LargeTradeMessage.
func (h *Hub) BroadcastLargeTrade(msg LargeTradeMessage) {
	h.broadcastJSON(MsgTypeLargeTrade, msg)
}

// BroadcastCycleSummary serialises and broadcasts a CycleSummaryMessage.
func (h *Hub) BroadcastCycleSummary(msg CycleSummaryMessage) {
	h.broadcastJSON(MsgTypeCycleSummary, msg)
}

// broadcastJSON is the common marshalling path. It never blocks the caller.
func (h *Hub) broadcastJSON(topic MsgType, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("ws_marshal_failed", "err", err)
		return
	}
	select {
	case h.broadcast <- outbound{topic: topic, data: data}:
	default:
		h.logger.Warn("ws_broadcast_full", "topic", topic)
	}
}

// sendTo queues v for a single client through Run, which owns the send
// channels.
func (h *Hub) sendTo(c *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("ws_marshal_failed", "err", err)
		return
	}
	select {
	case h.direct <- directMsg{client: c, data: data}:
	case <-h.done:
	}
}
