package actions

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
)

type fixed float64

func (f fixed) Float() float64 { return float64(f) }

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestCharacter() *characters.Character {
	return &characters.Character{
		ID:           "char-1",
		Qi:           characters.QiPool{Current: 50, Max: 100},
		SectStanding: 3,
		Skills: []characters.Skill{
			{Name: "Array Formation", Level: 2, Type: characters.SkillTechnical},
			{Name: "Talisman Craft", Level: 1, Type: characters.SkillTechnical},
			{Name: "Sword Art", Level: 4, Type: characters.SkillCombat},
		},
	}
}

func newTestAction() *Action {
	return &Action{
		ID:          "repair-array",
		Type:        TypeTechnical,
		Description: "Repair the warding array",
		Outcomes: Outcomes{
			Success: []characters.Effect{{ID: "reward", Modifiers: []characters.Modifier{
				{Kind: characters.ModQi, Value: 80},
				{Kind: characters.ModStanding, Value: 4},
				{Kind: characters.ModSkill, Skill: "Array Formation", Value: 1},
			}}},
			Failure: []characters.Effect{{ID: "backlash", Modifiers: []characters.Modifier{
				{Kind: characters.ModQi, Value: -80},
			}}},
		},
	}
}

func hoursPtr(h float64) *float64 { return &h }

func TestCooldown(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr bool
	}{
		{name: "two hours ago", elapsed: 2 * time.Hour, wantErr: true},
		{name: "five hours ago", elapsed: 5 * time.Hour},
		{name: "exactly elapsed", elapsed: 4 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAction()
			a.Cooldown = hoursPtr(4)
			last := now.Add(-tt.elapsed)
			a.LastUsed = &last
			c := newTestCharacter()

			_, err := (&Resolver{}).Resolve(a, c, now, fixed(0))

			if tt.wantErr {
				if !errors.Is(err, apperrors.New(apperrors.CodeCooldownActive, "")) {
					t.Fatalf("err = %v, want cooldown active", err)
				}
				if !a.LastUsed.Equal(last) || c.Qi.Current != 50 {
					t.Fatal("rejected action mutated state")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !a.LastUsed.Equal(now) {
				t.Fatalf("last used = %v, want %v", a.LastUsed, now)
			}
		})
	}
}

func TestRequirements(t *testing.T) {
	tests := []struct {
		name string
		req  Requirement
		inv  Inventory
		ok   bool
	}{
		{name: "qi met", req: Requirement{Kind: RequireQi, Value: 50}, ok: true},
		{name: "qi short", req: Requirement{Kind: RequireQi, Value: 51}},
		{name: "skill met", req: Requirement{Kind: RequireSkill, Skill: "Sword Art", Value: 4}, ok: true},
		{name: "skill low", req: Requirement{Kind: RequireSkill, Skill: "Sword Art", Value: 5}},
		{name: "skill missing", req: Requirement{Kind: RequireSkill, Skill: "Alchemy", Value: 1}},
		{name: "standing", req: Requirement{Kind: RequireStanding, Value: 3}, ok: true},
		{name: "standing short", req: Requirement{Kind: RequireStanding, Value: 4}},
		{name: "resource default", req: Requirement{Kind: RequireResource, Resource: "Spirit Stone", Value: 3}, ok: true},
		{name: "resource denied", req: Requirement{Kind: RequireResource, Resource: "Spirit Stone", Value: 3}, inv: emptyInventory{}},
		{name: "unknown kind", req: Requirement{Kind: "Karma", Value: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAction()
			a.Requirements = []Requirement{tt.req}
			c := newTestCharacter()

			_, err := (&Resolver{Inventory: tt.inv}).Resolve(a, c, now, fixed(0))

			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, apperrors.New(apperrors.CodeRequirementsNotMet, "")) {
					t.Fatalf("err = %v, want requirements not met", err)
				}
				if a.LastUsed != nil || c.Qi.Current != 50 {
					t.Fatal("failed requirement applied changes")
				}
			}
		})
	}
}

type emptyInventory struct{}

func (emptyInventory) Has(*characters.Character, string, float64) bool { return false }

func TestSuccessChanceCountsMatchingSkillsAndModifiers(t *testing.T) {
	c := newTestCharacter()
	c.AddEffect(characters.Effect{ID: "focus", Modifiers: []characters.Modifier{
		{Kind: characters.ModTechnical, Value: 7},
		{Kind: characters.ModCombat, Value: 100},
	}})

	// 60 + 5 * (2 + 1) + 7
	if got := SuccessChance(newTestAction(), c); got != 82 {
		t.Fatalf("chance = %v, want 82", got)
	}

	cult := &Action{Type: TypeCultivation}
	if got := SuccessChance(cult, c); got != 60 {
		t.Fatalf("cultivation chance = %v, want 60", got)
	}
}

func TestResolveSuccessAppliesClampedEffects(t *testing.T) {
	c := newTestCharacter()

	res, err := (&Resolver{}).Resolve(newTestAction(), c, now, fixed(0.5))
	if err != nil {
		t.Fatal(err)
	}

	if !res.Success || res.Roll != 50 || res.Chance != 75 {
		t.Fatalf("result = %+v", res)
	}
	if c.Qi.Current != 100 {
		t.Fatalf("qi = %v, want clamped 100", c.Qi.Current)
	}
	if c.SectStanding != 5 {
		t.Fatalf("standing = %v, want clamped 5", c.SectStanding)
	}
	if s, _ := c.Skill("Array Formation"); s.Level != 3 {
		t.Fatalf("skill level = %d, want 3", s.Level)
	}
	want := []string{
		"Successfully completed: Repair the warding array",
		"Qi changed by +50",
		"Standing changed by +2",
		"Array Formation changed by +1",
	}
	if !slices.Equal(res.Messages, want) {
		t.Fatalf("messages = %q, want %q", res.Messages, want)
	}
	if len(c.Effects) != 0 {
		t.Fatalf("instant effects attached to ledger: %+v", c.Effects)
	}
}

func TestResolveFailureAppliesFailureBranch(t *testing.T) {
	c := newTestCharacter()

	res, err := (&Resolver{}).Resolve(newTestAction(), c, now, fixed(0.99))
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("roll 99 succeeded against 75")
	}
	if c.Qi.Current != 0 {
		t.Fatalf("qi = %v, want clamped 0", c.Qi.Current)
	}
	if res.Messages[0] != "Failed to complete: Repair the warding array" || res.Messages[1] != "Qi changed by -50" {
		t.Fatalf("messages = %q", res.Messages)
	}
}

func TestTimedOutcomeEffectJoinsLedger(t *testing.T) {
	a := newTestAction()
	a.Outcomes.Success = []characters.Effect{{
		ID:        "enlightened",
		Duration:  hoursPtr(6),
		Modifiers: []characters.Modifier{{Kind: characters.ModCultivationSpeed, Value: 1}},
	}}
	c := newTestCharacter()

	if _, err := (&Resolver{}).Resolve(a, c, now, fixed(0)); err != nil {
		t.Fatal(err)
	}
	if len(c.Effects) != 1 || c.Effects[0].ID != "enlightened" {
		t.Fatalf("effects = %+v", c.Effects)
	}
}

func TestTimedOutcomeEffectLedgersOnlyOngoingModifiers(t *testing.T) {
	a := newTestAction()
	a.Outcomes.Success = []characters.Effect{{
		ID:       "insight",
		Duration: hoursPtr(6),
		Modifiers: []characters.Modifier{
			{Kind: characters.ModQi, Value: 5},
			{Kind: characters.ModCultivationSpeed, Value: 1},
		},
	}}
	c := newTestCharacter()

	if _, err := (&Resolver{}).Resolve(a, c, now, fixed(0)); err != nil {
		t.Fatal(err)
	}
	if c.Qi.Current != 55 {
		t.Fatalf("qi = %v, want 55", c.Qi.Current)
	}
	if got := c.ModifierSum(characters.ModQi); got != 0 {
		t.Fatalf("one-shot qi also ledgered: %v", got)
	}
	if got := c.ModifierSum(characters.ModCultivationSpeed); got != 1 {
		t.Fatalf("speed modifiers = %v, want 1", got)
	}

	// A timed effect made only of one-shot modifiers leaves nothing behind.
	a.Outcomes.Success[0].Modifiers = a.Outcomes.Success[0].Modifiers[:1]
	c = newTestCharacter()
	if _, err := (&Resolver{}).Resolve(a, c, now, fixed(0)); err != nil {
		t.Fatal(err)
	}
	if len(c.Effects) != 0 {
		t.Fatalf("effects = %+v, want none", c.Effects)
	}
}

func TestSkillMessageReportsAppliedChange(t *testing.T) {
	tests := []struct {
		name string
		mod  characters.Modifier
		want string
	}{
		{name: "known skill", mod: characters.Modifier{Kind: characters.ModSkill, Skill: "Sword Art", Value: 1.6}, want: "Sword Art changed by +2"},
		{name: "missing skill", mod: characters.Modifier{Kind: characters.ModSkill, Skill: "Alchemy", Value: 2}, want: "Alchemy changed by 0"},
		{name: "rounds to zero", mod: characters.Modifier{Kind: characters.ModSkill, Skill: "Sword Art", Value: 0.3}, want: "Sword Art changed by 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCharacter()
			msgs := ApplyEffect(c, characters.Effect{ID: "lesson", Modifiers: []characters.Modifier{tt.mod}})
			if len(msgs) != 1 || msgs[0] != tt.want {
				t.Fatalf("messages = %q, want %q", msgs, tt.want)
			}
		})
	}
}

func TestCloneDetachesLastUsed(t *testing.T) {
	a := newTestAction()
	a.LastUsed = &now
	cp := a.Clone()
	*cp.LastUsed = now.Add(time.Hour)

	if !a.LastUsed.Equal(now) {
		t.Fatal("clone shares last used")
	}
}
