package main

import (
	"context"
	"sync"

	"arena-server/internal/room"

	"github.com/sirupsen/logrus"
)

// Limits caps concurrent connections.
type Limits struct {
	MaxConnsPerIP int
	MaxTotalConns int
}

// hubEvent is a registration or a removal. Both travel in one queue so a
// client's removal is never handled before its registration.
type hubEvent struct {
	client *Client
	join   bool
	reason room.Reason
}

// Hub manages all connected clients and hands them to the room
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	events     chan hubEvent
	done       chan struct{}
	room       *room.Room
	log        logrus.FieldLogger
	limits     Limits
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a new Hub feeding rm
func NewHub(rm *room.Room, log logrus.FieldLogger, limits Limits) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		events:  make(chan hubEvent, 128),
		done:    make(chan struct{}),
		room:    rm,
		log:     log,
		limits:  limits,
		ipConns: make(map[string]int),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.limits.MaxTotalConns {
		return false
	}
	if h.ipConns[ip] >= h.limits.MaxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Register queues a new client. Once the hub has stopped the client is
// closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.events <- hubEvent{client: c, join: true}:
	case <-h.done:
		c.Close(room.ReasonClosed)
	}
}

// Unregister queues the removal of c. Only the first reason for a client
// counts.
func (h *Hub) Unregister(c *Client, reason room.Reason) {
	select {
	case h.events <- hubEvent{client: c, reason: reason}:
	case <-h.done:
	}
}

// Run processes register/unregister events until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-h.events:
			if ev.join {
				h.join(ev.client)
			} else {
				h.leave(ev.client, ev.reason)
			}
		}
	}
}

func (h *Hub) join(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	if err := h.room.Connect(c); err != nil {
		h.log.WithError(err).WithField("channel", c.ID()).Warn("room refused client")
	}
}

func (h *Hub) leave(c *Client, reason room.Reason) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.room.Disconnect(c.ID(), reason)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
