// Package websocket pushes live calculation results and snapshot change
// events to a user's open sessions.
package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/rs/zerolog"
)

// Hub maintains the set of active clients, grouped by owner, and fans
// snapshot events out to them
type Hub struct {
	// Registered clients organized by owner ID. Only Run mutates it.
	clients map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan models.SnapshotEvent

	done     chan struct{}
	stopOnce sync.Once

	// live sessions, released after their final flush. closing and
	// sessions.Add share closeMu so no session is added once Close returns.
	sessions sync.WaitGroup
	closeMu  sync.Mutex
	closing  bool

	// guards counts for ClientsCount
	mu     sync.RWMutex
	counts map[int64]int

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan models.SnapshotEvent, 256),
		done:       make(chan struct{}),
		counts:     make(map[int64]int),
		logger:     logger,
	}
}

// Run handles registrations and broadcasts until ctx is cancelled or Close
// is called. Remaining clients are disconnected on exit.
func (h *Hub) Run(ctx context.Context) {
	defer h.disconnectAll()
	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-h.done:
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.events:
			h.broadcastEvent(event)
		}
	}
}

// Close stops Run
func (h *Hub) Close() {
	h.closeMu.Lock()
	h.closing = true
	h.closeMu.Unlock()
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds a client. It returns false when the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	h.closeMu.Lock()
	if h.closing {
		h.closeMu.Unlock()
		return false
	}
	h.sessions.Add(1)
	h.closeMu.Unlock()

	select {
	case h.register <- c:
		return true
	case <-h.done:
		h.sessions.Done()
		return false
	}
}

// Wait blocks until every session has ended and flushed its draft
func (h *Hub) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister removes a client
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues an event for the owner's sessions. It never blocks the
// caller; events are dropped when the queue is full.
func (h *Hub) Publish(_ context.Context, event models.SnapshotEvent) {
	select {
	case h.events <- event:
	case <-h.done:
	default:
		h.logger.Warn().Int64("ownerID", event.OwnerID).Str("type", string(event.Type)).Msg("Event queue full, dropping event")
	}
}

func (h *Hub) registerClient(c *Client) {
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]bool)
	}
	h.clients[c.userID][c] = true
	h.setCount(c.userID, len(h.clients[c.userID]))

	h.logger.Info().
		Int64("userID", c.userID).
		Str("addr", c.remoteAddr()).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.setCount(c.userID, len(set))

	h.logger.Info().
		Int64("userID", c.userID).
		Str("addr", c.remoteAddr()).
		Msg("Client unregistered")
}

func (h *Hub) broadcastEvent(event models.SnapshotEvent) {
	set, ok := h.clients[event.OwnerID]
	if !ok {
		return
	}

	data, err := json.Marshal(OutboundMessage{Type: TypeEvent, Event: &event})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal event for broadcast")
		return
	}

	for c := range set {
		if !c.trySend(data) {
			// slow consumer
			c.close()
			h.unregisterClient(c)
		}
	}

	h.logger.Debug().
		Int64("ownerID", event.OwnerID).
		Str("type", string(event.Type)).
		Int("clientCount", len(set)).
		Msg("Event broadcasted")
}

func (h *Hub) disconnectAll() {
	for _, set := range h.clients {
		for c := range set {
			c.close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
	h.mu.Lock()
	h.counts = make(map[int64]int)
	h.mu.Unlock()
}

func (h *Hub) setCount(ownerID int64, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n == 0 {
		delete(h.counts, ownerID)
		return
	}
	h.counts[ownerID] = n
}

// ClientsCount returns the number of connected sessions of an owner
func (h *Hub) ClientsCount(ownerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[ownerID]
}
