// Package stream delivers change events to websocket subscribers grouped by
// game state.
package stream

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/talgya/ascension/internal/engine"
)

// ErrTooManyConnections is returned when the hub is at capacity.
var ErrTooManyConnections = errors.New("too many stream connections")

// Subscription receives events for one game state.
type Subscription struct {
	GameStateID string
	C           <-chan engine.Event

	ch   chan engine.Event
	hub  *Hub
	once sync.Once
}

// Close unsubscribes and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	maxConns int
	buffer   int

	mu    sync.RWMutex
	subs  map[string]map[*Subscription]struct{}
	count int

	dropped atomic.Uint64
}

// NewHub creates a hub admitting at most maxConns subscribers, each with a
// buffer of the given size.
func NewHub(maxConns, buffer int) *Hub {
	return &Hub{
		maxConns: maxConns,
		buffer:   max(buffer, 1),
		subs:     make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a subscriber for the game state.
func (h *Hub) Subscribe(gameStateID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxConns > 0 && h.count >= h.maxConns {
		return nil, ErrTooManyConnections
	}
	ch := make(chan engine.Event, h.buffer)
	sub := &Subscription{GameStateID: gameStateID, C: ch, ch: ch, hub: h}
	if h.subs[gameStateID] == nil {
		h.subs[gameStateID] = make(map[*Subscription]struct{})
	}
	h.subs[gameStateID][sub] = struct{}{}
	h.count++
	return sub, nil
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[s.GameStateID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.GameStateID)
	}
	h.count--
	close(s.ch)
}

// Publish implements engine.Sink.
func (h *Hub) Publish(ev engine.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[ev.GameStateID] {
		select {
		case sub.ch <- ev:
		default:
			if h.dropped.Add(1)%100 == 1 {
				slog.Warn("stream subscriber too slow, dropping events", "game", ev.GameStateID, "dropped_total", h.dropped.Load())
			}
		}
	}
}

// Connections returns the number of live subscribers.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns how many deliveries were skipped for full buffers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Shutdown closes every subscription.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var all []*Subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
}
