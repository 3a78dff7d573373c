package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/ammusto/tafarru3/pkg/history"
	"github.com/ammusto/tafarru3/pkg/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is one frame pushed to WebSocket clients.
type Message struct {
	Type    string          `json:"type"`
	State   *store.State    `json:"state,omitempty"`
	History *history.Status `json:"history,omitempty"`
}

// hub fans store snapshots out to connected clients. Each client has its own
// writer goroutine; a client whose buffer is full is dropped rather than
// blocking the store's notification path.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	metrics *Metrics
	logger  *log.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newHub(m *Metrics, logger *log.Logger) *hub {
	return &hub{clients: make(map[*client]struct{}), metrics: m, logger: logger}
}

// add registers c with the frame built by snapshot as its first message.
// Both happen under the hub lock, so every broadcast that follows the
// snapshot reaches c and none is queued ahead of it.
func (h *hub) add(c *client, snapshot func() ([]byte, error)) error {
	h.mu.Lock()
	first, err := snapshot()
	if err != nil {
		h.mu.Unlock()
		return err
	}
	c.send <- first
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.wsClients.Set(float64(n))
	return nil
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.once.Do(func() { close(c.send) })
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.wsClients.Set(float64(n))
}

func (h *hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal ws message", "err", err)
		return
	}
	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()
	for _, c := range slow {
		h.logger.Warn("dropping slow ws client", "remote", c.conn.RemoteAddr())
		h.remove(c)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWS upgrades the connection, sends the current state, then streams a
// message after every store commit and history change.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	err = s.hub.add(c, func() ([]byte, error) {
		status := s.editor.History.Status()
		return json.Marshal(Message{Type: "state", State: s.editor.Store.State(), History: &status})
	})
	if err != nil {
		s.logger.Error("marshal ws snapshot", "err", err)
		conn.Close()
		return
	}

	go s.writePump(c)
	s.readPump(c)
}

// readPump discards client frames and detects disconnects.
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
