// Package engine advances game states through in-game time and turns every
// mutation into an ordered change event.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/ascension/internal/actions"
	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/investigation"
)

// DefaultMaxHours is the longest single advancement.
const DefaultMaxHours = 24

// Source yields uniform draws in [0,1).
type Source interface {
	Float() float64
}

// Simulator applies the simulation rules to game states. It holds no
// per-game state; callers serialise access to each GameState.
type Simulator struct {
	MaxHours int
	Resolver *actions.Resolver
	Tides    TideSource       // optional Qi tide generator
	Now      func() time.Time // wall clock for discrete actions
}

// NewSimulator creates a simulator with default settings.
func NewSimulator() *Simulator {
	return &Simulator{
		MaxHours: DefaultMaxHours,
		Resolver: &actions.Resolver{},
		Now:      time.Now,
	}
}

// Entity names one character or investigation touched by an advancement.
type Entity struct {
	Kind string `json:"kind"` // "character" or "investigation"
	ID   string `json:"id"`
}

// EntityFailure is an entity whose update was abandoned.
type EntityFailure struct {
	Entity
	Error string `json:"error"`
}

// Outcome is the aggregate result of one advancement.
type Outcome struct {
	GameStateID string          `json:"game_state_id"`
	Hours       int             `json:"hours"`
	CurrentTime time.Time       `json:"current_time"`
	Events      []Event         `json:"events"`
	Succeeded   []Entity        `json:"succeeded"`
	Failed      []EntityFailure `json:"failed,omitempty"`
}

func (o *Outcome) fail(kind, id string, err error) {
	slog.Warn("entity update abandoned", "game", o.GameStateID, "kind", kind, "id", id, "error", err)
	o.Failed = append(o.Failed, EntityFailure{Entity: Entity{Kind: kind, ID: id}, Error: err.Error()})
}

func (o *Outcome) emit(t EventType, at time.Time, data map[string]any) {
	o.Events = append(o.Events, NewEvent(t, o.GameStateID, at, data))
}

// ValidateHours checks an advancement duration.
func (s *Simulator) ValidateHours(hours int) error {
	if hours < 1 || hours > s.MaxHours {
		return apperrors.WithMetadata(apperrors.CodeValidation,
			fmt.Sprintf("hours must be between 1 and %d, got %d", s.MaxHours, hours),
			map[string]string{"hours": fmt.Sprint(hours)})
	}
	return nil
}

// AdvanceTime moves the game state forward by hours. In order: the clock
// advances; each character has its effects expired and cultivates; each
// active investigation's timer decays and completed ones leave the active
// set; world events expire and reapply; any character left ready for a
// breakthrough breaks through. Entities are visited in id order. An entity
// whose update fails keeps its previous state and is reported in Failed.
func (s *Simulator) AdvanceTime(gs *GameState, hours int) (Outcome, error) {
	if err := s.ValidateHours(hours); err != nil {
		return Outcome{}, err
	}
	if gs == nil {
		return Outcome{}, apperrors.NotFound("game state", "")
	}

	h := float64(hours)
	out := Outcome{GameStateID: gs.ID, Hours: hours}

	// Snapshot ids before anything moves.
	charIDs := gs.CharacterIDs()
	invIDs := gs.InvestigationIDs()

	// ── Clock ─────────────────────────────────────────────────────────
	previous := gs.CurrentTime
	gs.CurrentTime = previous.Add(time.Duration(hours) * time.Hour)
	at := gs.CurrentTime
	out.emit(EventTimeAdvanced, at, map[string]any{
		"previous_time": previous,
		"current_time":  at,
		"hours":         hours,
	})

	// ── Characters ────────────────────────────────────────────────────
	for _, id := range charIDs {
		next := gs.Characters[id].Clone()
		if err := next.Validate(); err != nil {
			out.fail("character", id, err)
			continue
		}
		expired := next.ExpireEffects(h)
		res := next.Tick(h)
		if err := next.Validate(); err != nil {
			out.fail("character", id, err)
			continue
		}
		gs.Characters[id] = next

		expiredIDs := make([]string, len(expired))
		for i, e := range expired {
			expiredIDs[i] = e.Identity()
		}
		out.emit(EventCharacterUpdated, at, map[string]any{
			"character_id":    id,
			"reason":          "cultivation_tick",
			"qi_gained":       res.QiGained,
			"progress_gained": res.ProgressGained,
			"expired_effects": expiredIDs,
			"qi":              next.Qi,
			"cultivation":     next.Stage,
		})
		for _, b := range res.Breakthroughs {
			out.emitBreakthrough(at, next, b)
		}
		out.Succeeded = append(out.Succeeded, Entity{Kind: "character", ID: id})
	}

	// ── Investigations ────────────────────────────────────────────────
	for _, id := range invIDs {
		next := gs.Investigations[id].Clone()
		completed := investigation.Advance(next, h)
		if completed {
			delete(gs.Investigations, id)
			if gs.Completed == nil {
				gs.Completed = make(map[string]*investigation.Investigation)
			}
			gs.Completed[id] = next
			slog.Info("investigation complete", "game", gs.ID, "investigation", next.Name,
				"main_progress", next.MainObjective.Progress)
		} else {
			gs.Investigations[id] = next
		}
		out.emit(EventInvestigationUpdated, at, map[string]any{
			"investigation_id": id,
			"reason":           "timer",
			"time_remaining":   next.TimeRemaining,
			"status":           next.Status,
			"completed":        completed,
		})
		out.Succeeded = append(out.Succeeded, Entity{Kind: "investigation", ID: id})
	}

	// ── World events ──────────────────────────────────────────────────
	if s.Tides != nil {
		tide, ok := s.Tides.Forecast(gs.ID, at)
		changed, stale := setTide(gs, tide, ok)
		cleared := clearTideEffects(gs, stale)
		if changed {
			data := map[string]any{"reason": "tide", "active": ok}
			if ok {
				data["global_event"] = tide
			}
			if len(cleared) > 0 {
				data["cleared_characters"] = cleared
			}
			out.emit(EventStateUpdated, at, data)
		}
	}
	report := ProcessGlobalEvents(gs, h)
	if len(report.Expired) > 0 {
		ids := make([]string, len(report.Expired))
		for i, ev := range report.Expired {
			ids[i] = ev.ID
		}
		out.emit(EventStateUpdated, at, map[string]any{
			"reason":         "global_events_expired",
			"expired_events": ids,
		})
	}
	for _, id := range charIDs {
		if err, ok := report.Failed[id]; ok {
			out.fail("character", id, err)
			continue
		}
		if applied, ok := report.Applied[id]; ok {
			out.emit(EventCharacterUpdated, at, map[string]any{
				"character_id":    id,
				"reason":          "global_events",
				"applied_effects": applied,
			})
		}
	}

	// ── Breakthrough sweep ────────────────────────────────────────────
	for _, id := range charIDs {
		c := gs.Characters[id]
		if !c.ReadyForBreakthrough() {
			continue
		}
		next := c.Clone()
		b, _ := next.CheckBreakthrough()
		if err := next.Validate(); err != nil {
			out.fail("character", id, err)
			continue
		}
		gs.Characters[id] = next
		out.emitBreakthrough(at, next, b)
	}

	gs.LastUpdated = s.Now()
	out.CurrentTime = gs.CurrentTime
	slog.Debug("time advanced", "game", gs.ID, "hours", hours,
		"events", humanize.Comma(int64(len(out.Events))), "failed", len(out.Failed))
	return out, nil
}

func (o *Outcome) emitBreakthrough(at time.Time, c *characters.Character, b characters.Breakthrough) {
	slog.Info("breakthrough", "game", o.GameStateID, "character", c.Name,
		"level", humanize.Ordinal(b.ToLevel), "forced", b.Forced)
	o.emit(EventCharacterUpdated, at, map[string]any{
		"character_id": c.ID,
		"reason":       "breakthrough",
		"breakthrough": b,
		"qi":           c.Qi,
		"cultivation":  c.Stage,
	})
}

// ResolveAction resolves an action for one character. The action's last
// use falls back to the character's remembered last use when unset. The
// ACTION_RESOLVED event carries wall-clock time.
func (s *Simulator) ResolveAction(gs *GameState, characterID string, a *actions.Action, rng Source) (actions.Result, Event, error) {
	c, err := gs.Character(characterID)
	if err != nil {
		return actions.Result{}, Event{}, err
	}
	if a.ID == "" {
		return actions.Result{}, Event{}, apperrors.Validation("action id is required")
	}
	if a.LastUsed == nil {
		if last, ok := c.LastActions[a.ID]; ok {
			a.LastUsed = &last
		}
	}

	now := s.Now()
	next := c.Clone()
	res, err := s.Resolver.Resolve(a, next, now, rng)
	if err != nil {
		return actions.Result{}, Event{}, err
	}
	if next.LastActions == nil {
		next.LastActions = make(map[string]time.Time)
	}
	next.LastActions[a.ID] = now
	gs.Characters[characterID] = next
	gs.LastUpdated = now

	ev := NewEvent(EventActionResolved, gs.ID, now, map[string]any{
		"character_id": characterID,
		"action_id":    a.ID,
		"success":      res.Success,
		"chance":       res.Chance,
		"roll":         res.Roll,
		"messages":     res.Messages,
		"qi":           next.Qi,
	})
	return res, ev, nil
}

// UpdateInvestigationProgress sets a sub-objective's progress on behalf of a
// character and reports any clues found. A CLUE_DISCOVERED event precedes
// the INVESTIGATION_UPDATED event for each discovery.
func (s *Simulator) UpdateInvestigationProgress(gs *GameState, investigationID, subObjectiveID string, progress float64, characterID string, rng Source) (investigation.Update, []Event, error) {
	inv, err := gs.Investigation(investigationID)
	if err != nil {
		return investigation.Update{}, nil, err
	}
	c, err := gs.Character(characterID)
	if err != nil {
		return investigation.Update{}, nil, err
	}

	next := inv.Clone()
	upd, err := investigation.UpdateProgress(next, subObjectiveID, progress, c, rng)
	if err != nil {
		return investigation.Update{}, nil, err
	}
	if upd.Completed {
		delete(gs.Investigations, investigationID)
		if gs.Completed == nil {
			gs.Completed = make(map[string]*investigation.Investigation)
		}
		gs.Completed[investigationID] = next
	} else {
		gs.Investigations[investigationID] = next
	}

	now := s.Now()
	gs.LastUpdated = now
	var events []Event
	for _, d := range upd.Discoveries {
		events = append(events, NewEvent(EventClueDiscovered, gs.ID, now, map[string]any{
			"investigation_id": investigationID,
			"sub_objective_id": d.SubObjectiveID,
			"clue_id":          d.ClueID,
			"character_id":     characterID,
			"unlocked_leads":   d.UnlockedLeads,
		}))
	}
	events = append(events, NewEvent(EventInvestigationUpdated, gs.ID, now, map[string]any{
		"investigation_id": investigationID,
		"reason":           "progress",
		"sub_objective_id": subObjectiveID,
		"progress":         upd.Progress,
		"main_progress":    upd.MainProgress,
		"status":           next.Status,
		"completed":        upd.Completed,
	}))
	return upd, events, nil
}

// ExamineLead moves an unexamined lead to active for a qualifying character.
func (s *Simulator) ExamineLead(gs *GameState, investigationID, leadID, characterID string) (Event, error) {
	inv, err := gs.Investigation(investigationID)
	if err != nil {
		return Event{}, err
	}
	c, err := gs.Character(characterID)
	if err != nil {
		return Event{}, err
	}
	next := inv.Clone()
	if err := investigation.ExamineLead(next, leadID, c); err != nil {
		return Event{}, err
	}
	gs.Investigations[investigationID] = next
	now := s.Now()
	gs.LastUpdated = now
	return NewEvent(EventInvestigationUpdated, gs.ID, now, map[string]any{
		"investigation_id": investigationID,
		"reason":           "lead_examined",
		"lead_id":          leadID,
		"character_id":     characterID,
	}), nil
}

// ExhaustLead retires an active lead.
func (s *Simulator) ExhaustLead(gs *GameState, investigationID, leadID string) (Event, error) {
	inv, err := gs.Investigation(investigationID)
	if err != nil {
		return Event{}, err
	}
	next := inv.Clone()
	if err := investigation.ExhaustLead(next, leadID); err != nil {
		return Event{}, err
	}
	gs.Investigations[investigationID] = next
	now := s.Now()
	gs.LastUpdated = now
	return NewEvent(EventInvestigationUpdated, gs.ID, now, map[string]any{
		"investigation_id": investigationID,
		"reason":           "lead_exhausted",
		"lead_id":          leadID,
	}), nil
}

// AddCharacter validates and places a character in the game state.
func (s *Simulator) AddCharacter(gs *GameState, c *characters.Character) (Event, error) {
	if err := c.Validate(); err != nil {
		return Event{}, apperrors.Wrap(apperrors.CodeValidation, err.Error(), err)
	}
	if _, exists := gs.Characters[c.ID]; exists {
		return Event{}, apperrors.Validation("character already exists: " + c.ID)
	}
	if c.Effects == nil {
		c.Effects = []characters.Effect{}
	}
	gs.Characters[c.ID] = c.Clone()
	now := s.Now()
	gs.LastUpdated = now
	return NewEvent(EventStateUpdated, gs.ID, now, map[string]any{
		"reason":       "character_added",
		"character_id": c.ID,
	}), nil
}

// OpenInvestigation validates a new investigation and adds it to the active set.
func (s *Simulator) OpenInvestigation(gs *GameState, inv *investigation.Investigation) (Event, error) {
	if inv.ID == "" {
		return Event{}, apperrors.Validation("investigation id is required")
	}
	_, active := gs.Investigations[inv.ID]
	_, completed := gs.Completed[inv.ID]
	if active || completed {
		return Event{}, apperrors.Validation("investigation already exists: " + inv.ID)
	}
	next := inv.Clone()
	if err := investigation.Open(next); err != nil {
		return Event{}, err
	}
	gs.Investigations[next.ID] = next
	now := s.Now()
	gs.LastUpdated = now
	return NewEvent(EventStateUpdated, gs.ID, now, map[string]any{
		"reason":           "investigation_created",
		"investigation_id": next.ID,
		"investigation":    next,
	}), nil
}

// AddGlobalEvent schedules a world event.
func (s *Simulator) AddGlobalEvent(gs *GameState, ev GlobalEvent) (Event, error) {
	return AddGlobalEvent(gs, ev, s.Now())
}
