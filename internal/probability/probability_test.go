package probability

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestQiRegen(t *testing.T) {
	tests := []struct {
		name      string
		level     int
		hours     float64
		modifiers float64
		want      float64
	}{
		{name: "level zero", level: 0, hours: 1, want: 1},
		{name: "level scaling", level: 5, hours: 2, want: 3},
		{name: "with modifiers", level: 0, hours: 3, modifiers: 2, want: 9},
		{name: "drain", level: 0, hours: 1, modifiers: -4, want: -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QiRegen(tt.level, tt.hours, tt.modifiers); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("QiRegen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCultivationGain(t *testing.T) {
	if got := CultivationGain(1, 4); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("CultivationGain(1, 4) = %v, want 0.5", got)
	}
	if got := CultivationGain(10, -3); got != 0 {
		t.Fatalf("CultivationGain with heavy penalty = %v, want 0", got)
	}
}

func TestSuccessChanceClamped(t *testing.T) {
	tests := []struct {
		name   string
		levels int
		mods   float64
		want   float64
	}{
		{name: "base", want: 60},
		{name: "skills", levels: 3, want: 75},
		{name: "modifiers", levels: 1, mods: 10, want: 75},
		{name: "ceiling", levels: 20, want: 95},
		{name: "floor", mods: -200, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuccessChance(tt.levels, tt.mods); got != tt.want {
				t.Fatalf("SuccessChance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSuccessChanceAlwaysWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		levels := rapid.IntRange(0, 100).Draw(t, "levels")
		mods := rapid.Float64Range(-1000, 1000).Draw(t, "mods")

		got := SuccessChance(levels, mods)
		if got < MinSuccessChance || got > MaxSuccessChance {
			t.Fatalf("chance %v outside [%v, %v]", got, MinSuccessChance, MaxSuccessChance)
		}
	})
}

func TestDiscoveryChance(t *testing.T) {
	if got := DiscoveryChance(50, 3); got != 31 {
		t.Fatalf("DiscoveryChance(50, 3) = %v, want 31", got)
	}
}

func TestAggregateProgress(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{name: "empty", want: 0},
		{name: "two", values: []float64{40, 60}, want: 50},
		{name: "rounds", values: []float64{33, 34, 34}, want: 34},
		{name: "complete", values: []float64{100, 100}, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AggregateProgress(tt.values); got != tt.want {
				t.Fatalf("AggregateProgress(%v) = %d, want %d", tt.values, got, tt.want)
			}
		})
	}
}

func TestSucceedsIsInclusive(t *testing.T) {
	if !Succeeds(60, 60) {
		t.Fatal("roll equal to chance should succeed")
	}
	if Succeeds(60.0001, 60) {
		t.Fatal("roll above chance should fail")
	}
}
