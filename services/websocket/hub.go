package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

// Hub maintains the set of active clients and fans messages out to them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mutex sync.RWMutex
}

// Client is one websocket connection of a user.
type Client struct {
	send     chan []byte
	userID   uint
	schoolID uint
}

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Run processes registrations until ctx is cancelled, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logrus.WithFields(logrus.Fields{"user_id": client.userID, "school_id": client.schoolID}).Info("WebSocket client connected")

		case client := <-h.unregister:
			h.remove(client)
			logrus.WithField("user_id", client.userID).Info("WebSocket client disconnected")

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// BroadcastToSchool sends message to every client connected for the school.
func (h *Hub) BroadcastToSchool(schoolID uint, message interface{}) {
	h.deliver(message, func(c *Client) bool { return c.schoolID == schoolID })
}

// BroadcastToUser sends a message to all connections for a specific user
func (h *Hub) BroadcastToUser(userID uint, message interface{}) {
	h.deliver(message, func(c *Client) bool { return c.userID == userID })
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(message interface{}) {
	h.deliver(message, func(*Client) bool { return true })
}

// deliver never blocks. A client whose buffer is full is dropped.
func (h *Hub) deliver(message interface{}, match func(*Client) bool) {
	data, err := json.Marshal(message)
	if err != nil {
		logrus.WithError(err).Error("Error marshaling WebSocket message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	sent, dropped := 0, 0
	for client := range h.clients {
		if !match(client) {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			dropped++
			delete(h.clients, client)
			close(client.send)
		}
	}
	logrus.WithFields(logrus.Fields{"sent": sent, "dropped": dropped, "bytes": len(data)}).Debug("WebSocket broadcast")
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func newClient(userID, schoolID uint) *Client {
	return &Client{send: make(chan []byte, sendBuffer), userID: userID, schoolID: schoolID}
}

// conn is the part of a websocket connection the pumps use.
type conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
}

// ServeFiberWS handles Fiber websocket connections
func (h *Hub) ServeFiberWS(c *fiberws.Conn, userID, schoolID uint) {
	h.serve(c, userID, schoolID)
}

// serve returns only once both pumps are done with c; Fiber releases the
// connection as soon as the handler returns.
func (h *Hub) serve(c conn, userID, schoolID uint) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Errorf("ServeFiberWS panic for user %d", userID)
		}
	}()

	client := newClient(userID, schoolID)
	select {
	case h.register <- client:
	case <-h.done:
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(client, c)
	}()
	h.readPump(client, c)
	<-writerDone
}

func (h *Hub) writePump(client *Client, c conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.WriteMessage(fiberws.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(fiberws.TextMessage, message); err != nil {
				logrus.WithError(err).WithField("user_id", client.userID).Warn("WebSocket write error")
				return
			}

		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(fiberws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only keeps the connection alive; clients do not send data. Its
// unregister closes client.send, which stops the write pump.
func (h *Hub) readPump(client *Client, c conn) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	c.SetReadLimit(maxMessageSize)
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if fiberws.IsUnexpectedCloseError(err, fiberws.CloseGoingAway, fiberws.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("user_id", client.userID).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}
