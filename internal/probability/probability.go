// Package probability holds the pure formulas behind regeneration,
// cultivation, action success and clue discovery.
package probability

import "math"

// Cultivation constants.
const (
	MinQiRegen            = 1.0 // Qi per hour before level scaling
	LevelRegenBonus       = 0.1 // fraction of regen added per cultivation level
	BaseProgressRate      = 0.1 // cultivation progress per hour
	BreakthroughThreshold = 100.0
	BypassProgress        = 95.0 // progress at which a full Qi pool forces a breakthrough
	BreakthroughQiGrowth  = 1.2
)

// Action constants (percent).
const (
	BaseSuccessChance  = 60.0
	SkillBonusPerLevel = 5.0
	MinSuccessChance   = 5.0
	MaxSuccessChance   = 95.0
)

// Investigation constants.
const (
	ProgressDiscoveryWeight = 0.5
	SkillDiscoveryWeight    = 2.0
	MaxProgress             = 100.0
)

// MaxStanding is the ceiling of a character's sect standing.
const MaxStanding = 5.0

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// QiRegen returns Qi gained over hours for a cultivator of the given level,
// including the per-hour sum of Qi modifiers.
func QiRegen(level int, hours, qiModifiers float64) float64 {
	base := MinQiRegen * hours * (1 + LevelRegenBonus*float64(level))
	return base + qiModifiers*hours
}

// CultivationGain returns progress gained over hours given the summed
// cultivation speed modifiers. Speed penalties never reverse progress.
func CultivationGain(hours, speedModifiers float64) float64 {
	return math.Max(0, BaseProgressRate*hours*(1+speedModifiers))
}

// SuccessChance returns the percent chance of an action succeeding given the
// summed level of matching skills and the summed matching modifiers.
func SuccessChance(matchingSkillLevels int, modifiers float64) float64 {
	chance := BaseSuccessChance + SkillBonusPerLevel*float64(matchingSkillLevels) + modifiers
	return Clamp(chance, MinSuccessChance, MaxSuccessChance)
}

// DiscoveryChance returns the percent chance of discovering a clue at the
// given sub-objective progress with the summed investigative skill levels.
func DiscoveryChance(progress float64, investigativeSkillLevels int) float64 {
	return progress*ProgressDiscoveryWeight + SkillDiscoveryWeight*float64(investigativeSkillLevels)
}

// Percent scales a uniform draw in [0,1) to a roll in [0,100).
func Percent(u float64) float64 {
	return u * 100
}

// Succeeds reports whether a roll in [0,100) meets the chance.
func Succeeds(roll, chance float64) bool {
	return roll <= chance
}

// AggregateProgress returns the rounded mean of progress values expressed as
// a percentage of their combined maximum. No values aggregate to 0.
func AggregateProgress(values []float64) int {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return int(math.Round(sum / (float64(len(values)) * MaxProgress) * 100))
}
