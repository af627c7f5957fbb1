// Package events pushes live updates to connected dashboards over websockets.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cleanward/internal/auth"
	"github.com/cleanward/internal/logging"
)

// Topics tell dashboards which data to refetch
const (
	TopicReviewQueue = "review-queue"
	TopicLeaderboard = "leaderboard"
	TopicLedger      = "ledger"
	TopicWards       = "wards"
	TopicSession     = "session"
	TopicProfile     = "profile"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Message is the JSON frame sent to clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	At   time.Time   `json:"at"`
}

type delivery struct {
	payload []byte
	// userID limits delivery to one user's connections; empty means everyone
	userID string
	// target limits delivery to a single connection
	target *Client
	// closeAfter ends the target connection once the payload is queued
	closeAfter bool
}

// Hub tracks websocket clients and fans messages out to them
type Hub struct {
	gate     *auth.Gate
	upgrader websocket.Upgrader
	logger   *logging.Logger

	clients    map[*Client]bool
	deliveries chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
}

// Client is one websocket connection
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	session     auth.SessionState
	unsubscribe func()
}

// NewHub creates a hub. An empty allowedOrigins accepts any origin.
func NewHub(gate *auth.Gate, allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Hub{
		gate: gate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 || origins["*"] {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
		logger:     logging.WithField("component", "events_hub"),
		clients:    make(map[*Client]bool),
		deliveries: make(chan delivery, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and deliveries until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.count.Add(1)
			h.logger.WithField("user_id", c.session.UserID).Debug("client connected")

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
				h.logger.WithField("user_id", c.session.UserID).Debug("client disconnected")
			}

		case d := <-h.deliveries:
			for c := range h.clients {
				if d.target != nil && c != d.target {
					continue
				}
				if d.userID != "" && c.session.UserID != d.userID {
					continue
				}
				select {
				case c.send <- d.payload:
				default:
					// slow consumer
					h.drop(c)
					continue
				}
				if d.closeAfter {
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	h.count.Add(-1)
	close(c.send)
	c.unsubscribe()
}

// ClientCount returns the number of registered connections
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Broadcast sends a message to every connected client
func (h *Hub) Broadcast(topic string, data interface{}) {
	h.enqueue(delivery{userID: ""}, topic, data)
}

// SendToUser sends a message to every connection of one user
func (h *Hub) SendToUser(userID, topic string, data interface{}) {
	if userID == "" {
		return
	}
	h.enqueue(delivery{userID: userID}, topic, data)
}

func (h *Hub) enqueue(d delivery, topic string, data interface{}) {
	payload, err := json.Marshal(Message{Type: topic, Data: data, At: time.Now().UTC()})
	if err != nil {
		h.logger.WithError(err).WithField("topic", topic).Error("failed to marshal event")
		return
	}
	d.payload = payload

	select {
	case h.deliveries <- d:
	case <-h.done:
	default:
		h.logger.WithField("topic", topic).Warn("event queue full, dropping event")
	}
}

// ServeWS upgrades an authenticated request. The session token comes from
// the token query parameter since browsers cannot set headers on websockets.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	state := h.gate.Evaluate(r.Context(), r.URL.Query().Get("token"))
	if !state.Authenticated {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		session: state,
	}
	c.unsubscribe = h.gate.Subscribe(state.UserID, c.onSessionChange)

	select {
	case h.register <- c:
	case <-h.done:
		c.unsubscribe()
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// onSessionChange forwards a state change to this connection and closes it
// once the user is signed out
func (c *Client) onSessionChange(state auth.SessionState) {
	payload, err := json.Marshal(Message{Type: TopicSession, Data: state, At: time.Now().UTC()})
	if err != nil {
		return
	}
	select {
	case c.hub.deliveries <- delivery{payload: payload, target: c, closeAfter: !state.Authenticated}:
	case <-c.hub.done:
	case <-time.After(writeWait):
		c.hub.logger.WithField("user_id", c.session.UserID).Warn("session event not delivered")
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
