// Package stream distributes pipeline events to live subscriber connections.
package stream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stocktracker/internal/models"
)

// HubConfig holds configuration for the broadcast hub.
type HubConfig struct {
	// SendBufferSize is the size of each connection's outbound queue.
	SendBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBufferSize: 64,
	}
}

// Hub maintains the set of live subscriber connections and fans published
// events out to every one of them. Delivery to one connection never blocks
// or fails delivery to the others: a connection whose outbound queue is full
// or closed is dropped from the set and the rest proceed.
//
// Every joined connection receives every event. Inbound subscribe messages
// are tracked per connection (see Conn.Subscriptions) but do not narrow
// delivery; narrowing would be a local change to Publish.
type Hub struct {
	cfg    HubConfig
	logger zerolog.Logger

	mu    sync.RWMutex
	conns map[*Conn]struct{}

	// Metrics
	metricsMu       sync.Mutex
	eventsPublished uint64
	eventsDelivered uint64
	eventsDropped   uint64
}

// NewHub creates a new hub with default configuration.
func NewHub(logger zerolog.Logger) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger)
}

// NewHubWithConfig creates a new hub with custom configuration.
func NewHubWithConfig(cfg HubConfig, logger zerolog.Logger) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultHubConfig().SendBufferSize
	}
	return &Hub{
		cfg:    cfg,
		logger: logger.With().Str("component", "stream").Logger(),
		conns:  make(map[*Conn]struct{}),
	}
}

// Join registers a new connection and synchronously enqueues the snapshot
// event as its first delivery, so every subscriber starts from a consistent
// view before incremental updates arrive.
func (h *Hub) Join(snapshot models.Event) *Conn {
	c := &Conn{
		hub:        h,
		send:       make(chan models.Event, h.cfg.SendBufferSize),
		subscribed: make(map[string]struct{}),
		joinedAt:   time.Now(),
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	// The queue is freshly created, so this send cannot fail.
	c.send <- snapshot
	h.mu.Unlock()

	h.logger.Debug().Int("connections", h.Count()).Msg("Subscriber joined")
	return c
}

// Leave removes a connection from the hub and closes its outbound queue.
// Safe to call more than once.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		h.logger.Debug().Int("connections", h.Count()).Msg("Subscriber left")
	}
}

// Publish fans an event out to every joined connection. Events enqueue in
// publish order onto each connection's queue, and each queue is drained by a
// single writer, so per-connection delivery order matches publish order.
func (h *Hub) Publish(ev models.Event) {
	var dead []*Conn

	h.mu.RLock()
	for c := range h.conns {
		select {
		case c.send <- ev:
			h.countDelivered()
		default:
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	h.countPublished()

	for _, c := range dead {
		h.countDropped()
		h.logger.Warn().Msg("Dropping subscriber with full send queue")
		h.Leave(c)
	}
}

// sendTo enqueues an event for a single connection, dropping the connection
// if its queue is full. Used for per-connection acknowledgements.
func (h *Hub) sendTo(c *Conn, ev models.Event) {
	h.mu.RLock()
	_, member := h.conns[c]
	delivered := false
	if member {
		select {
		case c.send <- ev:
			delivered = true
		default:
		}
	}
	h.mu.RUnlock()

	if member && !delivered {
		h.countDropped()
		h.Leave(c)
	}
}

// Count returns the number of joined connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// HubMetrics contains hub delivery counters.
type HubMetrics struct {
	EventsPublished uint64
	EventsDelivered uint64
	EventsDropped   uint64
	Connections     int
}

// Metrics returns a snapshot of the hub's counters.
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.Lock()
	m := HubMetrics{
		EventsPublished: h.eventsPublished,
		EventsDelivered: h.eventsDelivered,
		EventsDropped:   h.eventsDropped,
	}
	h.metricsMu.Unlock()
	m.Connections = h.Count()
	return m
}

func (h *Hub) countPublished() {
	h.metricsMu.Lock()
	h.eventsPublished++
	h.metricsMu.Unlock()
}

func (h *Hub) countDelivered() {
	h.metricsMu.Lock()
	h.eventsDelivered++
	h.metricsMu.Unlock()
}

func (h *Hub) countDropped() {
	h.metricsMu.Lock()
	h.eventsDropped++
	h.metricsMu.Unlock()
}
