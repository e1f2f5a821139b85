// Package relay runs a single endpoint's viewer-facing side: the
// fan-out hub that distributes decoder output, the WebSocket connection
// handlers, and the listener that ties them to one port.
package relay

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Sink accepts byte chunks from a producer. *Hub implements Sink.
type Sink interface {
	Publish(chunk []byte)
}

// Hub fans chunks from a single producer out to every current
// subscriber. Each subscriber owns a bounded buffer with an explicit
// drop-oldest overflow policy: a slow consumer loses its oldest unread
// chunks, the producer never blocks, and other subscribers are
// unaffected. Chunks published before a subscription exist are not
// replayed to it.
type Hub struct {
	log   *slog.Logger
	depth int

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	published atomic.Int64
}

// Subscription is one consumer's bounded window onto the hub's chunk
// sequence. The channel returned by Chunks is closed when the
// subscription is cancelled or the hub shuts down.
type Subscription struct {
	id  string
	hub *Hub
	ch  chan []byte

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewHub creates a Hub whose subscribers each buffer up to depth
// chunks. If log is nil, slog.Default() is used.
func NewHub(depth int, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log.With("component", "hub"),
		depth: depth,
		subs:  make(map[string]*Subscription),
	}
}

// Subscribe registers a new consumer. Subscribing to a closed hub
// returns a subscription whose channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{
		id:  uuid.NewString(),
		hub: h,
		ch:  make(chan []byte, h.depth),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(s.ch)
		return s
	}

	h.subs[s.id] = s
	h.log.Debug("subscriber added", "subscriber", s.id, "count", len(h.subs))
	return s
}

// Publish delivers chunk to every current subscriber. A full subscriber
// buffer evicts its oldest chunk to make room; the chunk is counted as
// dropped for that subscriber either way.
func (h *Hub) Publish(chunk []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	h.published.Add(1)

	for _, s := range h.subs {
		select {
		case s.ch <- chunk:
			s.delivered.Add(1)
			continue
		default:
		}

		// Buffer full: evict the oldest unread chunk, then retry once.
		// The consumer may have drained concurrently, so both steps are
		// non-blocking.
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
		select {
		case s.ch <- chunk:
			s.delivered.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

// Close shuts the hub down and closes every subscriber channel.
// Subsequent Publish calls are no-ops. Close is idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.ch)
	}
	h.log.Debug("hub closed", "published", h.published.Load())
}

// SubscriberCount returns the number of current subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Published returns the total number of chunks accepted by the hub.
func (h *Hub) Published() int64 { return h.published.Load() }

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Chunks returns the channel on which the subscriber receives its
// suffix of the published sequence, in publish order.
func (s *Subscription) Chunks() <-chan []byte { return s.ch }

// Delivered returns how many chunks were enqueued for this subscriber.
func (s *Subscription) Delivered() int64 { return s.delivered.Load() }

// Dropped returns how many chunks this subscriber lost to overflow.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Cancel removes the subscription from the hub and closes its channel.
// Cancel is idempotent and safe to call concurrently with Publish.
func (s *Subscription) Cancel() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.ch)
	h.log.Debug("subscriber removed", "subscriber", s.id, "count", len(h.subs))
}
