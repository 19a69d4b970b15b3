package engine

import (
	"math"
	"slices"
	"time"

	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/investigation"
)

// GlobalEventType categorises a world event.
type GlobalEventType string

const (
	EventInvestigation GlobalEventType = "Investigation"
	EventCultivation   GlobalEventType = "Cultivation"
	EventSocial        GlobalEventType = "Social"
	EventSystem        GlobalEventType = "System"
	EventTide          GlobalEventType = "Tide" // generated Qi tides, replaced each advancement
)

// Scope decides who a world event touches.
type Scope string

const (
	ScopeGlobal Scope = "global" // effects reach every character
	ScopeLocal  Scope = "local"  // narrative only
)

// GlobalEvent is a world-scoped occurrence that may push effects onto every
// character while it lasts.
type GlobalEvent struct {
	ID          string              `json:"id"`
	Type        GlobalEventType     `json:"type"`
	Scope       Scope               `json:"scope"`
	Description string              `json:"description"`
	Timestamp   time.Time           `json:"timestamp"`
	Effects     []characters.Effect `json:"effects,omitempty"`
	Duration    *float64            `json:"duration,omitempty"` // hours; nil lasts until removed
}

// GameState is the aggregate root of one world.
type GameState struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdated    time.Time `json:"last_updated"`
	CurrentTime    time.Time `json:"current_time"` // in-game clock
	TimeMultiplier float64   `json:"time_multiplier"`

	Characters     map[string]*characters.Character        `json:"characters"`
	Investigations map[string]*investigation.Investigation `json:"active_investigations"`
	Completed      map[string]*investigation.Investigation `json:"completed_investigations,omitempty"`
	GlobalEvents   []GlobalEvent                           `json:"global_events"`
}

// NewGameState returns an empty game state starting at the given in-game time.
func NewGameState(id string, start, now time.Time, multiplier float64) *GameState {
	return &GameState{
		ID:             id,
		CreatedAt:      now,
		LastUpdated:    now,
		CurrentTime:    start,
		TimeMultiplier: multiplier,
		Characters:     make(map[string]*characters.Character),
		Investigations: make(map[string]*investigation.Investigation),
		Completed:      make(map[string]*investigation.Investigation),
		GlobalEvents:   []GlobalEvent{},
	}
}

// CharacterIDs returns character ids in lexicographic order.
func (gs *GameState) CharacterIDs() []string {
	return sortedKeys(gs.Characters)
}

// InvestigationIDs returns active investigation ids in lexicographic order.
func (gs *GameState) InvestigationIDs() []string {
	return sortedKeys(gs.Investigations)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Character returns the character with the given id.
func (gs *GameState) Character(id string) (*characters.Character, error) {
	c, ok := gs.Characters[id]
	if !ok {
		return nil, apperrors.NotFound("character", id)
	}
	return c, nil
}

// Investigation returns the active investigation with the given id.
func (gs *GameState) Investigation(id string) (*investigation.Investigation, error) {
	inv, ok := gs.Investigations[id]
	if !ok {
		return nil, apperrors.NotFound("investigation", id)
	}
	return inv, nil
}

// StepHours scales a base step by the game's time multiplier, rounded and
// clamped to [1, maxHours].
func (gs *GameState) StepHours(base, maxHours int) int {
	m := gs.TimeMultiplier
	if m <= 0 {
		m = 1
	}
	h := int(math.Round(float64(base) * m))
	return min(max(h, 1), maxHours)
}
