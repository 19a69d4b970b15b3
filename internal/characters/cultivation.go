package characters

import "github.com/talgya/ascension/internal/probability"

// Breakthrough records one advance to the next cultivation level.
type Breakthrough struct {
	FromLevel int     `json:"from_level"`
	ToLevel   int     `json:"to_level"`
	QiMax     float64 `json:"qi_max"`
	Forced    bool    `json:"forced"` // triggered by a full Qi pool before progress reached 100
}

// TickResult summarises one cultivation tick.
type TickResult struct {
	QiGained       float64        `json:"qi_gained"`
	ProgressGained float64        `json:"progress_gained"`
	Breakthroughs  []Breakthrough `json:"breakthroughs,omitempty"`
}

// Tick advances Qi and cultivation progress by hours and performs any
// breakthroughs that result.
func (c *Character) Tick(hours float64) TickResult {
	var res TickResult

	gain := probability.QiRegen(c.Stage.Level, hours, c.ModifierSum(ModQi))
	res.QiGained = c.AdjustQi(gain)

	res.ProgressGained = probability.CultivationGain(hours, c.ModifierSum(ModCultivationSpeed))
	c.Stage.Progress += res.ProgressGained

	if c.Stage.Progress >= probability.BreakthroughThreshold {
		res.Breakthroughs = append(res.Breakthroughs, c.Breakthrough(false))
	}
	if b, ok := c.CheckBreakthrough(); ok {
		res.Breakthroughs = append(res.Breakthroughs, b)
	}
	return res
}

// Breakthrough advances the character one level: progress resets, the Qi
// pool grows and current Qi is re-clamped.
func (c *Character) Breakthrough(forced bool) Breakthrough {
	from := c.Stage.Level
	c.Stage.Level++
	c.Stage.Progress = 0
	c.Qi.Max *= probability.BreakthroughQiGrowth
	c.AdjustQi(0)
	return Breakthrough{
		FromLevel: from,
		ToLevel:   c.Stage.Level,
		QiMax:     c.Qi.Max,
		Forced:    forced,
	}
}

// ReadyForBreakthrough reports whether the character must break through:
// progress at the threshold, or a full Qi pool with progress at 95 or more.
func (c *Character) ReadyForBreakthrough() bool {
	if c.Stage.Progress >= probability.BreakthroughThreshold {
		return true
	}
	return c.Qi.Current == c.Qi.Max && c.Stage.Progress >= probability.BypassProgress
}

// CheckBreakthrough performs a breakthrough if the character is ready.
func (c *Character) CheckBreakthrough() (Breakthrough, bool) {
	if !c.ReadyForBreakthrough() {
		return Breakthrough{}, false
	}
	forced := c.Stage.Progress < probability.BreakthroughThreshold
	return c.Breakthrough(forced), true
}
