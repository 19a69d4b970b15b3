// Package characters provides the cultivator data model, the effect ledger
// and the cultivation tick.
package characters

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/talgya/ascension/internal/probability"
)

// SkillType tags a skill with the kind of action it supports.
type SkillType string

const (
	SkillCombat    SkillType = "Combat"
	SkillTechnical SkillType = "Technical"
	SkillSpiritual SkillType = "Spiritual"
	SkillSocial    SkillType = "Social"
)

// Investigative reports whether the skill contributes to clue discovery.
func (t SkillType) Investigative() bool {
	return t == SkillTechnical || t == SkillSocial
}

// Skill is a leveled, type-tagged competence.
type Skill struct {
	Name  string    `json:"name"`
	Level int       `json:"level"`
	Type  SkillType `json:"type"`
}

// CultivationStage tracks a character's realm.
type CultivationStage struct {
	Name     string  `json:"name"`
	Level    int     `json:"level"`
	Progress float64 `json:"progress"` // 0–100
}

// QiPool is a character's spiritual energy.
type QiPool struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
}

// Reputation is a character's renown and how far it reaches.
type Reputation struct {
	Level int    `json:"level"`
	Scope string `json:"scope,omitempty"` // Local, Regional, Sect-wide
}

// Artifact is an item a character carries.
type Artifact struct {
	Name    string   `json:"name"`
	Rarity  string   `json:"rarity,omitempty"`
	Effects []string `json:"effects,omitempty"`
}

// Character is a cultivator owned by one game state.
type Character struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Cultivation
	Stage CultivationStage `json:"cultivation_stage"`
	Qi    QiPool           `json:"qi"`

	// Standing
	Sect         string     `json:"sect,omitempty"`
	SectStanding float64    `json:"sect_standing"` // 0–5
	Reputation   Reputation `json:"reputation"`

	Skills      []Skill    `json:"skills"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CurrentGoal string     `json:"current_goal,omitempty"`

	Effects []Effect `json:"active_effects"`

	// Last resolution time per action id, for cooldowns.
	LastActions map[string]time.Time `json:"last_actions,omitempty"`
}

// Clone returns a deep copy of the character.
func (c *Character) Clone() *Character {
	out := *c
	out.Skills = slices.Clone(c.Skills)
	if c.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(c.Artifacts))
		for i, a := range c.Artifacts {
			a.Effects = slices.Clone(a.Effects)
			out.Artifacts[i] = a
		}
	}
	if c.Effects != nil {
		out.Effects = make([]Effect, len(c.Effects))
		for i, e := range c.Effects {
			out.Effects[i] = e.Clone()
		}
	}
	out.LastActions = maps.Clone(c.LastActions)
	return &out
}

// Validate checks the character's numeric invariants.
func (c *Character) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("character has no id")
	case !finite(c.Qi.Max) || c.Qi.Max <= 0:
		return fmt.Errorf("character %s: qi max %v must be positive", c.ID, c.Qi.Max)
	case !finite(c.Qi.Current) || c.Qi.Current < 0 || c.Qi.Current > c.Qi.Max:
		return fmt.Errorf("character %s: qi %v outside [0, %v]", c.ID, c.Qi.Current, c.Qi.Max)
	case !finite(c.Stage.Progress) || c.Stage.Progress < 0 || c.Stage.Progress > probability.MaxProgress:
		return fmt.Errorf("character %s: progress %v outside [0, 100]", c.ID, c.Stage.Progress)
	case c.Stage.Level < 0:
		return fmt.Errorf("character %s: negative level", c.ID)
	case c.SectStanding < 0 || c.SectStanding > probability.MaxStanding:
		return fmt.Errorf("character %s: standing %v outside [0, 5]", c.ID, c.SectStanding)
	}
	return nil
}

// Skill returns the named skill.
func (c *Character) Skill(name string) (*Skill, bool) {
	for i := range c.Skills {
		if c.Skills[i].Name == name {
			return &c.Skills[i], true
		}
	}
	return nil, false
}

// SkillLevels sums the levels of skills matching the predicate.
func (c *Character) SkillLevels(match func(Skill) bool) int {
	total := 0
	for _, s := range c.Skills {
		if match(s) {
			total += s.Level
		}
	}
	return total
}

// ModifierSum totals active effect modifiers of the given kind, scaled by
// each effect's stack count.
func (c *Character) ModifierSum(kind ModifierKind) float64 {
	var sum float64
	for _, e := range c.Effects {
		stacks := float64(e.Stacks())
		for _, m := range e.Modifiers {
			if m.Kind == kind {
				sum += m.Value * stacks
			}
		}
	}
	return sum
}

// AdjustQi adds delta to current Qi, clamped to the pool, and returns the
// applied change.
func (c *Character) AdjustQi(delta float64) float64 {
	before := c.Qi.Current
	c.Qi.Current = probability.Clamp(before+delta, 0, c.Qi.Max)
	return c.Qi.Current - before
}

// AdjustStanding adds delta to sect standing, clamped to [0, 5], and returns
// the applied change.
func (c *Character) AdjustStanding(delta float64) float64 {
	before := c.SectStanding
	c.SectStanding = probability.Clamp(before+delta, 0, probability.MaxStanding)
	return c.SectStanding - before
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
