package server

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

var clientIDCounter atomic.Uint64

// Hub pushes session snapshots to websocket subscribers.
//
// Each connection follows one session. The hub is fed by [tasks.SessionStore.Subscribe]; when a terminal
// snapshot is delivered the connection is closed after it is written.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}
	closed   bool

	upgrader     websocket.Upgrader
	pushInterval time.Duration
	logger       *log.Logger
	wg           sync.WaitGroup
}

type client struct {
	id        uint64
	sessionID string
	hub       *Hub
	conn      *websocket.Conn
	send      chan *models.MigrationSession
	closeOnce sync.Once
}

// NewHub creates a hub. A positive pushInterval re-sends the latest snapshot on that period so clients can
// detect stalls.
func NewHub(pushInterval time.Duration, logger *log.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		pushInterval: pushInterval,
		logger:       logger,
	}
}

// Serve upgrades the request and follows sessionID. The client is registered before current is read, so the
// first snapshot it receives is never older than one a concurrent [Hub.Publish] has skipped.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, sessionID string, current func() (*models.MigrationSession, error)) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:        clientIDCounter.Add(1),
		sessionID: sessionID,
		hub:       h,
		conn:      conn,
		send:      make(chan *models.MigrationSession, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	if h.sessions[c.sessionID] == nil {
		h.sessions[c.sessionID] = make(map[*client]struct{})
	}
	h.sessions[c.sessionID][c] = struct{}{}

	// Publish takes h.mu after the store has been written, so current sees every snapshot it would miss.
	initial, err := current()
	if err != nil {
		h.detach(c)
	} else {
		h.deliver(c, initial)
	}
	h.wg.Add(2)
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "session", c.sessionID, "client", c.id)
	go c.writePump()
	go c.readPump()
	return err
}

// Publish delivers snap to every client following its session. It never blocks: a slow client only ever
// misses intermediate snapshots, never the latest one.
func (h *Hub) Publish(snap *models.MigrationSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.sessions[snap.SessionID] {
		h.deliver(c, snap)
	}
}

// deliver queues snap for c, replacing the oldest queued snapshot when the buffer is full. Terminal snapshots
// detach the client. Callers hold h.mu.
func (h *Hub) deliver(c *client, snap *models.MigrationSession) {
	snap = snap.Clone()
	select {
	case c.send <- snap:
	default:
		select {
		case <-c.send:
		default:
		}
		c.send <- snap
	}
	if snap.Status.IsTerminal() {
		h.detach(c)
	}
}

// detach removes c and closes its send channel. Callers hold h.mu.
func (h *Hub) detach(c *client) {
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	close(c.send)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	h.detach(c)
	h.mu.Unlock()
}

// Count returns the number of clients following sessionID.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Close disconnects every client and waits for their goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for _, clients := range h.sessions {
		for c := range clients {
			h.detach(c)
		}
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (c *client) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

// readPump discards client messages and detects disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.hub.wg.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read failed", "session", c.sessionID, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	var push <-chan time.Time
	if c.hub.pushInterval > 0 {
		t := time.NewTicker(c.hub.pushInterval)
		defer t.Stop()
		push = t.C
	}
	defer func() {
		ping.Stop()
		c.close()
		c.hub.wg.Done()
	}()

	var last *models.MigrationSession
	for {
		select {
		case snap, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished")
				_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
				c.hub.logger.Debug("websocket client done", "session", c.sessionID, "client", c.id)
				return
			}
			if err := c.conn.WriteJSON(snap); err != nil {
				c.hub.logger.Debug("websocket write failed", "session", c.sessionID, "error", err)
				return
			}
			last = snap

		case <-push:
			if last == nil {
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(last); err != nil {
				return
			}

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
