package engine

import (
	"log/slog"
	"time"

	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
)

// GlobalReport summarises one pass of the global event processor.
type GlobalReport struct {
	Expired []GlobalEvent       // removed because their duration fit inside the window
	Applied map[string][]string // character id → effect ids applied
	Failed  map[string]error    // character id → why its effects were not applied
}

// ProcessGlobalEvents drops events whose duration is no longer than hours,
// then copies every effect of each remaining global-scoped event onto every
// character through the effect ledger. Durations are compared against this
// window only; they are not decremented.
func ProcessGlobalEvents(gs *GameState, hours float64) GlobalReport {
	report := GlobalReport{
		Expired: expireGlobalEvents(gs, hours),
		Applied: make(map[string][]string),
		Failed:  make(map[string]error),
	}

	var active []GlobalEvent
	for _, ev := range gs.GlobalEvents {
		if ev.Scope == ScopeGlobal && len(ev.Effects) > 0 {
			active = append(active, ev)
		}
	}
	if len(active) == 0 {
		return report
	}

	for _, id := range gs.CharacterIDs() {
		next := gs.Characters[id].Clone()
		var applied []string
		for _, ev := range active {
			for _, e := range ev.Effects {
				e.Source = ev.ID
				next.AddEffect(e)
				applied = append(applied, e.Identity())
			}
		}
		if err := next.Validate(); err != nil {
			report.Failed[id] = err
			continue
		}
		gs.Characters[id] = next
		report.Applied[id] = applied
	}
	return report
}

// expireGlobalEvents removes events whose duration is set and no longer
// than hours, returning them.
func expireGlobalEvents(gs *GameState, hours float64) []GlobalEvent {
	var expired []GlobalEvent
	n := 0
	for _, ev := range gs.GlobalEvents {
		if ev.Duration != nil && *ev.Duration <= hours {
			expired = append(expired, ev)
			continue
		}
		gs.GlobalEvents[n] = ev
		n++
	}
	if len(expired) > 0 {
		slog.Info("global events expired", "game", gs.ID, "removed", len(expired))
	}
	gs.GlobalEvents = gs.GlobalEvents[:n]
	return expired
}

// TideSource forecasts the Qi tide for a game state at an in-game time.
type TideSource interface {
	Forecast(gameStateID string, at time.Time) (GlobalEvent, bool)
}

// setTide replaces any tide event with the forecast. It reports whether the
// set of tide events changed and returns the effect identities carried by
// the old tide that the new one no longer carries.
func setTide(gs *GameState, tide GlobalEvent, ok bool) (changed bool, stale []string) {
	var previous *GlobalEvent
	n := 0
	for _, ev := range gs.GlobalEvents {
		if ev.Type == EventTide {
			prev := ev
			previous = &prev
			continue
		}
		gs.GlobalEvents[n] = ev
		n++
	}
	gs.GlobalEvents = gs.GlobalEvents[:n]

	keep := make(map[string]bool)
	if ok {
		tide.Type = EventTide
		gs.GlobalEvents = append(gs.GlobalEvents, tide)
		for _, e := range tide.Effects {
			keep[e.Identity()] = true
		}
	}
	if previous == nil {
		return ok, nil
	}
	for _, e := range previous.Effects {
		if !keep[e.Identity()] {
			stale = append(stale, e.Identity())
		}
	}
	return !ok || previous.ID != tide.ID, stale
}

// clearTideEffects detaches the given effect identities from every character
// and returns the ids of the characters it changed.
func clearTideEffects(gs *GameState, identities []string) []string {
	if len(identities) == 0 {
		return nil
	}
	var cleared []string
	for _, id := range gs.CharacterIDs() {
		next := gs.Characters[id].Clone()
		removed := false
		for _, identity := range identities {
			if next.RemoveEffect(identity) {
				removed = true
			}
		}
		if removed {
			gs.Characters[id] = next
			cleared = append(cleared, id)
		}
	}
	return cleared
}

// AddGlobalEvent validates and schedules a world event.
func AddGlobalEvent(gs *GameState, ev GlobalEvent, now time.Time) (Event, error) {
	if ev.ID == "" {
		return Event{}, apperrors.Validation("global event id is required")
	}
	for _, existing := range gs.GlobalEvents {
		if existing.ID == ev.ID {
			return Event{}, apperrors.Validation("global event already scheduled: " + ev.ID)
		}
	}
	if ev.Duration != nil && *ev.Duration <= 0 {
		return Event{}, apperrors.Validation("global event duration must be positive")
	}
	switch ev.Scope {
	case "":
		ev.Scope = ScopeGlobal
	case ScopeGlobal, ScopeLocal:
	default:
		return Event{}, apperrors.Validation("unknown global event scope: " + string(ev.Scope))
	}
	if ev.Type == "" {
		ev.Type = EventSystem
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = gs.CurrentTime
	}
	effects := make([]characters.Effect, len(ev.Effects))
	for i, e := range ev.Effects {
		effects[i] = e.Clone()
	}
	ev.Effects = effects

	gs.GlobalEvents = append(gs.GlobalEvents, ev)
	gs.LastUpdated = now
	return NewEvent(EventStateUpdated, gs.ID, now, map[string]any{
		"reason":       "global_event_added",
		"global_event": ev,
	}), nil
}
