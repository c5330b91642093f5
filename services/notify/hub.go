package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tokenalert_backend/models"
	"tokenalert_backend/services/market"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Envelope is the wire format for every hub message
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// client is one websocket connection owned by a user
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// Hub fans alert and market events out to connected websocket clients.
// Alert firings go only to the owning user; market updates go to all.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	direct     chan directMessage

	mu      sync.RWMutex
	running bool
	stop    chan struct{}
}

type directMessage struct {
	userID  string
	payload []byte
}

// NewHub creates an idle hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		direct:     make(chan directMessage, 64),
		stop:       make(chan struct{}),
	}
}

// Run processes hub events until Shutdown
func (h *Hub) Run() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case <-h.stop:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			log.Printf("WebSocket client connected for user %s (%d total)", c.userID, len(h.clients))
			c.queue(mustMarshal(Envelope{
				Type:      "connection_status",
				Data:      map[string]string{"status": "connected"},
				Timestamp: time.Now(),
			}))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Printf("WebSocket client disconnected for user %s (%d total)", c.userID, len(h.clients))
			}
		case payload := <-h.broadcast:
			for c := range h.clients {
				c.queue(payload)
			}
		case msg := <-h.direct:
			for c := range h.clients {
				if c.userID == msg.userID {
					c.queue(msg.payload)
				}
			}
		}
	}
}

// Shutdown stops the hub and closes every client
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stop)
}

// Notify sends an alert firing to the owning user's connections
func (h *Hub) Notify(alert models.Alert, snapshot market.PriceSnapshot) {
	payload := mustMarshal(Envelope{
		Type: "alert_triggered",
		Data: map[string]interface{}{
			"alert":    alert,
			"snapshot": snapshot,
		},
		Timestamp: time.Now(),
	})
	select {
	case h.direct <- directMessage{userID: alert.UserID, payload: payload}:
	default:
		log.Printf("WebSocket hub busy, dropped alert notification for user %s", alert.UserID)
	}
}

// PublishMarketUpdate broadcasts a fresh market batch to every client
func (h *Hub) PublishMarketUpdate(snapshots []market.PriceSnapshot) {
	payload := mustMarshal(Envelope{
		Type:      "market_update",
		Data:      snapshots,
		Timestamp: time.Now(),
	})
	select {
	case h.broadcast <- payload:
	default:
		log.Println("WebSocket hub busy, dropped market update")
	}
}

// ServeWS upgrades an HTTP request to a websocket client for userID
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 32),
		userID: userID,
	}
	select {
	case h.register <- c:
	case <-h.stop:
		// hub already shut down, drop the connection
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// queue drops the message if the client's buffer is full
func (c *client) queue(payload []byte) {
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
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
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

func mustMarshal(v interface{}) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("WebSocket payload marshal failed: %v", err)
		return []byte("{}")
	}
	return payload
}
