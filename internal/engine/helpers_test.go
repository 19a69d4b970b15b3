package engine

import (
	"time"

	"github.com/talgya/ascension/internal/characters"
	"github.com/talgya/ascension/internal/investigation"
)

var (
	gameStart = time.Date(1000, 1, 1, 6, 0, 0, 0, time.UTC)
	wallClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixed float64

func (f fixed) Float() float64 { return float64(f) }

func newTestSimulator() *Simulator {
	s := NewSimulator()
	s.Now = func() time.Time { return wallClock }
	return s
}

func newTestGame() *GameState {
	gs := NewGameState("game-1", gameStart, wallClock, 1)
	gs.Characters["b-disciple"] = &characters.Character{
		ID:     "b-disciple",
		Name:   "Mei",
		Stage:  characters.CultivationStage{Name: "Qi Condensation", Level: 1, Progress: 10},
		Qi:     characters.QiPool{Current: 20, Max: 100},
		Skills: []characters.Skill{{Name: "Rumour Mill", Level: 2, Type: characters.SkillSocial}},
	}
	gs.Characters["a-elder"] = &characters.Character{
		ID:    "a-elder",
		Name:  "Wen",
		Stage: characters.CultivationStage{Name: "Foundation", Level: 4, Progress: 50},
		Qi:    characters.QiPool{Current: 80, Max: 200},
	}
	gs.Investigations["inv-1"] = &investigation.Investigation{
		ID:     "inv-1",
		Name:   "Stolen Pill Furnace",
		Status: investigation.StatusActive,
		SubObjectives: []investigation.SubObjective{
			{ID: "sub-1", Clues: []investigation.Clue{{ID: "clue-1", LeadsTo: []string{"lead-1"}}}},
			{ID: "sub-2"},
		},
		Leads:         []investigation.Lead{{ID: "lead-1", Status: investigation.LeadLocked}},
		TimeRemaining: 30,
	}
	return gs
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
