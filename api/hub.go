package api

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WSMessage is a message sent over WebSocket connections. Job messages
// carry the job ID so clients can follow a single job.
type WSMessage struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub     *WSHub
	send    chan WSMessage // owned by the hub, closed on removal
	control chan WSMessage // replies to this client's own requests

	mu    sync.Mutex
	jobID string // empty: every job
}

// Follow restricts the client to messages of one job; "" follows all.
func (c *WSClient) Follow(jobID string) {
	c.mu.Lock()
	c.jobID = jobID
	c.mu.Unlock()
}

// reply queues a direct answer, dropping it if the client is backed up.
func (c *WSClient) reply(msg WSMessage) {
	select {
	case c.control <- msg:
	default:
	}
}

func (c *WSClient) wants(msg WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID == "" || msg.JobID == "" || msg.JobID == c.jobID
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}
	log        *zap.Logger
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *zap.Logger) *WSHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		log:        logger.Named("ws"),
	}
}

// Run is the hub event loop. It returns when ctx is cancelled, closing
// every client.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			var slow []*WSClient
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg) {
					continue
				}
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.log.Debug("dropping slow client")
				h.remove(c)
			}
		}
	}
}

func (h *WSHub) remove(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends a message to all interested clients. It never blocks:
// messages are dropped when the queue is full.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(c *WSClient) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(c *WSClient) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
