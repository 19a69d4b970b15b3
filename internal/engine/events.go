package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of change events.
type EventType string

const (
	EventStateUpdated         EventType = "STATE_UPDATED"
	EventTimeAdvanced         EventType = "TIME_ADVANCED"
	EventCharacterUpdated     EventType = "CHARACTER_UPDATED"
	EventInvestigationUpdated EventType = "INVESTIGATION_UPDATED"
	EventClueDiscovered       EventType = "CLUE_DISCOVERED"
	EventActionResolved       EventType = "ACTION_RESOLVED"
)

// Event is one change notification.
type Event struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	GameStateID string         `json:"game_state_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data"`
}

// NewEvent stamps a new event with a fresh id.
func NewEvent(t EventType, gameStateID string, at time.Time, data map[string]any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		GameStateID: gameStateID,
		Timestamp:   at,
		Data:        data,
	}
}

// Sink receives events. Publish must not block the caller.
//
//go:generate go tool mockgen -destination=./mocks/sink_mock.go -package=mocks . Sink
type Sink interface {
	Publish(event Event)
}

// PublishAll hands every event to the sink in order.
func PublishAll(s Sink, events []Event) {
	if s == nil {
		return
	}
	for _, ev := range events {
		s.Publish(ev)
	}
}

// Recorder is a Sink that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records the event.
func (r *Recorder) Publish(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
