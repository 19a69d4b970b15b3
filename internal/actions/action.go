// Package actions resolves discrete character actions: cooldowns,
// requirements, the success roll and outcome effects.
package actions

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/probability"
)

// Type is the discipline an action draws on.
type Type string

const (
	TypeTechnical   Type = "Technical"
	TypeSocial      Type = "Social"
	TypeCombat      Type = "Combat"
	TypeCultivation Type = "Cultivation"
)

// skillType returns the skill type that boosts this action, if any.
func (t Type) skillType() (characters.SkillType, bool) {
	switch t {
	case TypeTechnical:
		return characters.SkillTechnical, true
	case TypeSocial:
		return characters.SkillSocial, true
	case TypeCombat:
		return characters.SkillCombat, true
	}
	return "", false
}

// modifierKind returns the effect modifier kind that boosts this action.
func (t Type) modifierKind() characters.ModifierKind {
	switch t {
	case TypeTechnical:
		return characters.ModTechnical
	case TypeSocial:
		return characters.ModSocial
	case TypeCombat:
		return characters.ModCombat
	case TypeCultivation:
		return characters.ModCultivation
	}
	return characters.ModUnknown
}

// RequirementKind is the closed set of action requirement kinds.
type RequirementKind string

const (
	RequireQi       RequirementKind = "Qi"
	RequireSkill    RequirementKind = "Skill"
	RequireStanding RequirementKind = "Standing"
	RequireResource RequirementKind = "Resource"
)

// Requirement gates an attempt.
type Requirement struct {
	Kind     RequirementKind `json:"type"`
	Value    float64         `json:"value"`
	Skill    string          `json:"skill,omitempty"`    // for RequireSkill
	Resource string          `json:"resource,omitempty"` // for RequireResource
}

// Outcomes holds the effects applied on success and on failure.
type Outcomes struct {
	Success []characters.Effect `json:"success"`
	Failure []characters.Effect `json:"failure"`
}

// Action is one thing a character can attempt.
type Action struct {
	ID           string        `json:"id"`
	Type         Type          `json:"type"`
	Description  string        `json:"description"`
	Requirements []Requirement `json:"requirements,omitempty"`
	Outcomes     Outcomes      `json:"outcomes"`

	Cooldown *float64   `json:"cooldown,omitempty"` // hours
	LastUsed *time.Time `json:"last_used,omitempty"`
}

// Result is the outcome of a resolved action.
type Result struct {
	Success  bool                `json:"success"`
	Chance   float64             `json:"chance"`
	Roll     float64             `json:"roll"`
	Effects  []characters.Effect `json:"effects"`
	Messages []string            `json:"messages"`
}

// Inventory answers resource requirements.
type Inventory interface {
	Has(c *characters.Character, resource string, amount float64) bool
}

// Source yields uniform draws in [0,1).
type Source interface {
	Float() float64
}

// Resolver resolves actions against characters.
type Resolver struct {
	Inventory Inventory // nil treats every resource requirement as met
}

// Resolve attempts the action for the character at time now. A cooldown or
// requirement failure returns a precondition error and leaves both the
// character and the action untouched.
func (r *Resolver) Resolve(a *Action, c *characters.Character, now time.Time, rng Source) (Result, error) {
	if remaining, ok := CooldownRemaining(a, now); ok {
		return Result{}, apperrors.WithMetadata(apperrors.CodeCooldownActive,
			fmt.Sprintf("action %s is on cooldown for %s more hours", a.ID, humanize.FtoaWithDigits(remaining, 2)),
			map[string]string{"action": a.ID})
	}
	if failed, ok := r.unmet(a, c); ok {
		return Result{}, apperrors.WithMetadata(apperrors.CodeRequirementsNotMet,
			fmt.Sprintf("requirements not met for %s: %s", a.ID, failed),
			map[string]string{"action": a.ID, "requirement": string(failed.Kind)})
	}

	res := Result{Chance: SuccessChance(a, c)}
	res.Roll = probability.Percent(rng.Float())
	res.Success = probability.Succeeds(res.Roll, res.Chance)

	effects := a.Outcomes.Failure
	if res.Success {
		effects = a.Outcomes.Success
		res.Messages = append(res.Messages, "Successfully completed: "+a.Description)
	} else {
		res.Messages = append(res.Messages, "Failed to complete: "+a.Description)
	}
	for _, e := range effects {
		res.Messages = append(res.Messages, ApplyEffect(c, e)...)
		res.Effects = append(res.Effects, e.Clone())
	}

	used := now
	a.LastUsed = &used
	return res, nil
}

// CooldownRemaining reports the hours left before the action can be used
// again, and whether any remain.
func CooldownRemaining(a *Action, now time.Time) (float64, bool) {
	if a.Cooldown == nil || a.LastUsed == nil {
		return 0, false
	}
	elapsed := now.Sub(*a.LastUsed).Hours()
	if elapsed >= *a.Cooldown {
		return 0, false
	}
	return *a.Cooldown - elapsed, true
}

// SuccessChance returns the percent chance of the character succeeding.
func SuccessChance(a *Action, c *characters.Character) float64 {
	levels := 0
	if st, ok := a.Type.skillType(); ok {
		levels = c.SkillLevels(func(s characters.Skill) bool { return s.Type == st })
	}
	return probability.SuccessChance(levels, c.ModifierSum(a.Type.modifierKind()))
}

// unmet returns the first requirement the character fails.
func (r *Resolver) unmet(a *Action, c *characters.Character) (Requirement, bool) {
	for _, req := range a.Requirements {
		if !r.met(req, c) {
			return req, true
		}
	}
	return Requirement{}, false
}

func (r *Resolver) met(req Requirement, c *characters.Character) bool {
	switch req.Kind {
	case RequireQi:
		return c.Qi.Current >= req.Value
	case RequireSkill:
		s, ok := c.Skill(req.Skill)
		return ok && float64(s.Level) >= req.Value
	case RequireStanding:
		return c.SectStanding >= req.Value
	case RequireResource:
		return r.Inventory == nil || r.Inventory.Has(c, req.Resource, req.Value)
	}
	return false
}

// String describes the requirement for messages.
func (req Requirement) String() string {
	switch req.Kind {
	case RequireSkill:
		return fmt.Sprintf("%s level %s", req.Skill, humanize.FtoaWithDigits(req.Value, 2))
	case RequireResource:
		return fmt.Sprintf("%s x%s", req.Resource, humanize.FtoaWithDigits(req.Value, 2))
	}
	return fmt.Sprintf("%s %s", req.Kind, humanize.FtoaWithDigits(req.Value, 2))
}

// ApplyEffect applies an outcome effect's immediate modifiers to the
// character and returns one message per modifier, reporting the change
// actually made. Qi, standing and skill modifiers are one-shot. When the
// effect carries a duration, its remaining modifiers join the ledger as
// ongoing modifiers.
func ApplyEffect(c *characters.Character, e characters.Effect) []string {
	var msgs []string
	var ongoing []characters.Modifier
	for _, m := range e.Modifiers {
		applied := m.Value
		switch m.Kind {
		case characters.ModQi:
			applied = c.AdjustQi(m.Value)
		case characters.ModStanding:
			applied = c.AdjustStanding(m.Value)
		case characters.ModSkill:
			applied = 0
			if s, ok := c.Skill(m.Skill); ok {
				delta := int(math.Round(m.Value))
				s.Level += delta
				applied = float64(delta)
			}
		default:
			ongoing = append(ongoing, m)
		}
		msgs = append(msgs, fmt.Sprintf("%s changed by %s", label(m), signed(applied)))
	}
	if !e.Permanent() && len(ongoing) > 0 {
		e.Modifiers = ongoing
		c.AddEffect(e)
	}
	return msgs
}

func label(m characters.Modifier) string {
	if m.Kind == characters.ModSkill && m.Skill != "" {
		return m.Skill
	}
	return string(m.Kind)
}

func signed(v float64) string {
	s := humanize.FtoaWithDigits(v, 2)
	if v > 0 {
		return "+" + s
	}
	return s
}

// Clone returns a deep copy of the action.
func (a *Action) Clone() *Action {
	out := *a
	out.Requirements = slices.Clone(a.Requirements)
	out.Outcomes.Success = cloneEffects(a.Outcomes.Success)
	out.Outcomes.Failure = cloneEffects(a.Outcomes.Failure)
	if a.Cooldown != nil {
		cd := *a.Cooldown
		out.Cooldown = &cd
	}
	if a.LastUsed != nil {
		lu := *a.LastUsed
		out.LastUsed = &lu
	}
	return &out
}

func cloneEffects(in []characters.Effect) []characters.Effect {
	if in == nil {
		return nil
	}
	out := make([]characters.Effect, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
