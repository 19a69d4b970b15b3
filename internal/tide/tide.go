// Package tide generates Qi tides: world events that raise Qi regeneration
// for every character while coherent noise over in-game time runs high.
package tide

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/dustin/go-humanize"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/ascension/internal/characters"
	"github.com/talgya/ascension/internal/engine"
)

// EventID identifies the tide event and the effect it applies.
const EventID = "qi-tide"

// Config holds tide generation parameters.
type Config struct {
	Seed      int64   // noise seed
	Threshold float64 // noise level (0.0–1.0) above which a tide surges
	Strength  float64 // Qi per hour at full surge
	Period    float64 // in-game hours per unit of noise space
	Octaves   int
}

// DefaultConfig returns a reasonable starting configuration: surges a few
// times per in-game week, peaking at +3 Qi per hour.
func DefaultConfig() Config {
	return Config{
		Seed:      42,
		Threshold: 0.62,
		Strength:  3,
		Period:    48,
		Octaves:   3,
	}
}

// Forecaster implements engine.TideSource.
type Forecaster struct {
	cfg   Config
	noise opensimplex.Noise
}

// New creates a forecaster.
func New(cfg Config) *Forecaster {
	if cfg.Period <= 0 {
		cfg.Period = DefaultConfig().Period
	}
	if cfg.Octaves < 1 {
		cfg.Octaves = 1
	}
	return &Forecaster{
		cfg:   cfg,
		noise: opensimplex.NewNormalized(cfg.Seed),
	}
}

// Level returns the tide level in [0, 1] for a game state at an in-game time.
// Each game state samples its own row of the noise field.
func (f *Forecaster) Level(gameStateID string, at time.Time) float64 {
	x := float64(at.Unix()) / 3600 / f.cfg.Period
	return octaveNoise(f.noise, x, row(gameStateID), f.cfg.Octaves, 1, 0.5)
}

// Forecast returns the tide event when the tide is surging. The tide's effect
// has no duration: each advancement replaces it by identity, and the engine
// strips it from characters when the tide ebbs.
func (f *Forecaster) Forecast(gameStateID string, at time.Time) (engine.GlobalEvent, bool) {
	level := f.Level(gameStateID, at)
	if level <= f.cfg.Threshold || f.cfg.Threshold >= 1 {
		return engine.GlobalEvent{}, false
	}
	surge := (level - f.cfg.Threshold) / (1 - f.cfg.Threshold)
	qi := f.cfg.Strength * surge

	return engine.GlobalEvent{
		ID:          EventID,
		Type:        engine.EventTide,
		Scope:       engine.ScopeGlobal,
		Description: fmt.Sprintf("A Qi tide surges through the world (+%s Qi per hour)", humanize.FtoaWithDigits(qi, 2)),
		Timestamp:   at,
		Effects: []characters.Effect{{
			ID:        EventID,
			Name:      "Qi Tide",
			Modifiers: []characters.Modifier{{Kind: characters.ModQi, Value: qi}},
		}},
	}, true
}

func row(gameStateID string) float64 {
	h := fnv.New32a()
	h.Write([]byte(gameStateID))
	return float64(h.Sum32()%10007) * 1.37
}

// octaveNoise layers noise at doubling frequencies, normalized to the
// range of the source noise.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
