package stream

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"stocktracker/internal/models"
)

// Conn represents one live subscriber connection. The hub owns membership;
// the transport layer drains Events with a single writer goroutine and feeds
// inbound frames to HandleInbound.
type Conn struct {
	hub      *Hub
	send     chan models.Event
	joinedAt time.Time

	mu         sync.Mutex
	subscribed map[string]struct{}
}

// Events returns the connection's outbound queue. The channel is closed when
// the connection leaves the hub.
func (c *Conn) Events() <-chan models.Event {
	return c.send
}

// Subscriptions returns the symbols this connection has subscribed to, in
// sorted order. Delivery is currently broadcast-to-all; the set is kept so
// narrowing delivery stays a local change to Hub.Publish.
func (c *Conn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subscribed))
	for s := range c.subscribed {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// inboundMessage is the shape of client-to-server frames.
type inboundMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// HandleInbound processes one raw frame from the client: subscribe and
// unsubscribe messages update the connection's subscription set and are
// acknowledged; anything else is ignored.
func (h *Hub) HandleInbound(c *Conn, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debug().Err(err).Msg("Ignoring malformed inbound frame")
		return
	}

	switch msg.Type {
	case "subscribe":
		c.mu.Lock()
		for _, s := range msg.Symbols {
			c.subscribed[s] = struct{}{}
		}
		c.mu.Unlock()
		h.sendTo(c, models.Event{Type: models.EventSubscriptionConfirmed, Symbols: msg.Symbols})
	case "unsubscribe":
		c.mu.Lock()
		for _, s := range msg.Symbols {
			delete(c.subscribed, s)
		}
		c.mu.Unlock()
		h.sendTo(c, models.Event{Type: models.EventUnsubscriptionConfirmed, Symbols: msg.Symbols})
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown inbound message type")
	}
}
