// Package investigation models investigations and their progression:
// timers, clue discovery, lead unlocking and objective aggregation.
package investigation

import (
	"slices"

	"github.com/talgya/ascension/internal/characters"
	"github.com/talgya/ascension/internal/probability"
)

// Type classifies an investigation.
type Type string

const (
	TypePolitical Type = "Political"
	TypeTechnical Type = "Technical"
	TypeSocial    Type = "Social"
	TypeResource  Type = "Resource"
)

// Status is an investigation's lifecycle state.
type Status string

const (
	StatusActive   Status = "Active"
	StatusComplete Status = "Complete"
)

// LeadStatus is a lead's state.
type LeadStatus string

const (
	LeadActive     LeadStatus = "Active"
	LeadUnexamined LeadStatus = "Unexamined"
	LeadExhausted  LeadStatus = "Exhausted"
	LeadLocked     LeadStatus = "Locked"
)

// RequirementKind is the closed set of lead requirement kinds.
type RequirementKind string

const (
	RequireSkill    RequirementKind = "Skill"
	RequireStanding RequirementKind = "Standing"
)

// Requirement gates examining a lead.
type Requirement struct {
	Kind  RequirementKind `json:"type"`
	Value float64         `json:"value"`
	Skill string          `json:"skill,omitempty"` // for RequireSkill
}

// Clue is discovered at most once and may unlock leads.
type Clue struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Discovered  bool     `json:"discovered"`
	LeadsTo     []string `json:"leads_to,omitempty"` // lead ids
}

// SubObjective is one strand of an investigation.
type SubObjective struct {
	ID               string  `json:"id"`
	Description      string  `json:"description"`
	Progress         float64 `json:"progress"` // 0–100
	RequiredProgress float64 `json:"required_progress"`
	Clues            []Clue  `json:"clues,omitempty"`
}

// Complete reports whether the sub-objective is finished.
func (s SubObjective) Complete() bool {
	return s.Progress >= probability.MaxProgress
}

// Lead is a line of inquiry.
type Lead struct {
	ID           string        `json:"id"`
	Description  string        `json:"description"`
	Status       LeadStatus    `json:"status"`
	Requirements []Requirement `json:"requirements,omitempty"`
}

// Objective is the derived aggregate of all sub-objectives.
type Objective struct {
	Description string `json:"description"`
	Progress    int    `json:"progress"`
}

// NPCRelation is a non-player contact and how they regard the investigator.
type NPCRelation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Attitude int    `json:"attitude"` // 0–8
	Trust    int    `json:"trust"`    // 0–8
}

// ResourcePool is what the investigation can spend.
type ResourcePool struct {
	SpiritStones int      `json:"spirit_stones"`
	MeritPoints  int      `json:"merit_points"`
	Tools        []string `json:"tools,omitempty"`
}

// Investigation is a timed, multi-objective inquiry within a game state.
type Investigation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type Type   `json:"type"`

	Status        Status         `json:"status"`
	MainObjective Objective      `json:"main_objective"`
	SubObjectives []SubObjective `json:"sub_objectives"`
	Leads         []Lead         `json:"leads,omitempty"`

	NPCs      []NPCRelation `json:"npcs,omitempty"`
	Resources ResourcePool  `json:"resources"`

	TimeRemaining float64 `json:"time_remaining"` // hours
}

// Clone returns a deep copy of the investigation.
func (inv *Investigation) Clone() *Investigation {
	out := *inv
	if inv.SubObjectives != nil {
		out.SubObjectives = make([]SubObjective, len(inv.SubObjectives))
		for i, s := range inv.SubObjectives {
			if s.Clues != nil {
				clues := make([]Clue, len(s.Clues))
				for j, c := range s.Clues {
					c.LeadsTo = slices.Clone(c.LeadsTo)
					clues[j] = c
				}
				s.Clues = clues
			}
			out.SubObjectives[i] = s
		}
	}
	if inv.Leads != nil {
		out.Leads = make([]Lead, len(inv.Leads))
		for i, l := range inv.Leads {
			l.Requirements = slices.Clone(l.Requirements)
			out.Leads[i] = l
		}
	}
	out.NPCs = slices.Clone(inv.NPCs)
	out.Resources.Tools = slices.Clone(inv.Resources.Tools)
	return &out
}

// Complete reports whether the investigation has finished.
func (inv *Investigation) Complete() bool {
	return inv.Status == StatusComplete
}

// SubObjective returns the sub-objective with the given id.
func (inv *Investigation) SubObjective(id string) (*SubObjective, bool) {
	for i := range inv.SubObjectives {
		if inv.SubObjectives[i].ID == id {
			return &inv.SubObjectives[i], true
		}
	}
	return nil, false
}

// Lead returns the lead with the given id.
func (inv *Investigation) Lead(id string) (*Lead, bool) {
	for i := range inv.Leads {
		if inv.Leads[i].ID == id {
			return &inv.Leads[i], true
		}
	}
	return nil, false
}

// RecomputeMainObjective derives the main objective's progress from its
// sub-objectives.
func (inv *Investigation) RecomputeMainObjective() int {
	values := make([]float64, len(inv.SubObjectives))
	for i, s := range inv.SubObjectives {
		values[i] = s.Progress
	}
	inv.MainObjective.Progress = probability.AggregateProgress(values)
	return inv.MainObjective.Progress
}

// AllObjectivesComplete reports whether every sub-objective is at 100.
// An investigation without sub-objectives is never complete this way.
func (inv *Investigation) AllObjectivesComplete() bool {
	if len(inv.SubObjectives) == 0 {
		return false
	}
	for _, s := range inv.SubObjectives {
		if !s.Complete() {
			return false
		}
	}
	return true
}

// ActiveLeads returns leads that are Active or Unexamined.
func (inv *Investigation) ActiveLeads() []Lead {
	var out []Lead
	for _, l := range inv.Leads {
		if l.Status == LeadActive || l.Status == LeadUnexamined {
			out = append(out, l)
		}
	}
	return out
}

// RequirementsMet reports whether the character satisfies every lead
// requirement. Unknown kinds fail closed.
func (l Lead) RequirementsMet(c *characters.Character) bool {
	for _, req := range l.Requirements {
		switch req.Kind {
		case RequireSkill:
			s, ok := c.Skill(req.Skill)
			if !ok || float64(s.Level) < req.Value {
				return false
			}
		case RequireStanding:
			if c.SectStanding < req.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}
