package characters

import "slices"

// ModifierKind is the closed set of quantities an effect can modify.
type ModifierKind string

const (
	ModQi               ModifierKind = "Qi"
	ModCultivationSpeed ModifierKind = "CultivationSpeed"
	ModStanding         ModifierKind = "Standing"
	ModSkill            ModifierKind = "Skill"
	ModTechnical        ModifierKind = "Technical"
	ModSocial           ModifierKind = "Social"
	ModCombat           ModifierKind = "Combat"
	ModCultivation      ModifierKind = "Cultivation"
	ModSpiritual        ModifierKind = "Spiritual"
	ModInvestigation    ModifierKind = "Investigation"
	ModUnknown          ModifierKind = "Unknown"
)

var modifierKinds = []ModifierKind{
	ModQi, ModCultivationSpeed, ModStanding, ModSkill, ModTechnical,
	ModSocial, ModCombat, ModCultivation, ModSpiritual, ModInvestigation,
}

// ParseModifierKind maps a name onto the closed set. Unrecognised names
// become ModUnknown, which no rule consumes.
func ParseModifierKind(s string) ModifierKind {
	k := ModifierKind(s)
	if slices.Contains(modifierKinds, k) {
		return k
	}
	return ModUnknown
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ModifierKind) UnmarshalText(b []byte) error {
	*k = ParseModifierKind(string(b))
	return nil
}

// Modifier is one kind → value entry in an effect.
type Modifier struct {
	Kind  ModifierKind `json:"type"`
	Value float64      `json:"value"`
	Skill string       `json:"skill,omitempty"` // target skill for ModSkill
}

// Effect is a timed or permanent modifier bundle on a character.
type Effect struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"` // global event or action that applied it

	Duration  *float64   `json:"duration,omitempty"` // hours remaining; nil is permanent
	Modifiers []Modifier `json:"modifiers"`

	Stackable     bool `json:"stackable"`
	MaxStacks     int  `json:"max_stacks,omitempty"`
	CurrentStacks int  `json:"current_stacks,omitempty"`
}

// Identity is the key under which the ledger replaces or stacks effects.
func (e Effect) Identity() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// Stacks returns the effective stack count, at least one.
func (e Effect) Stacks() int {
	return max(e.CurrentStacks, 1)
}

// Permanent reports whether the effect has no duration.
func (e Effect) Permanent() bool {
	return e.Duration == nil
}

// Clone returns a deep copy of the effect.
func (e Effect) Clone() Effect {
	e.Modifiers = slices.Clone(e.Modifiers)
	if e.Duration != nil {
		d := *e.Duration
		e.Duration = &d
	}
	return e
}

// Hours returns a pointer to h, for building effect durations.
func Hours(h float64) *float64 {
	return &h
}
