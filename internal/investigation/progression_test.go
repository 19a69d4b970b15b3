package investigation

import (
	"errors"
	"testing"

	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
	"pgregory.net/rapid"
)

// scripted replays fixed draws, repeating the last one.
type scripted []float64

func (s *scripted) Float() float64 {
	v := (*s)[0]
	if len(*s) > 1 {
		*s = (*s)[1:]
	}
	return v
}

func draws(v ...float64) *scripted {
	s := scripted(v)
	return &s
}

func newTestInvestigation() *Investigation {
	return &Investigation{
		ID:   "inv-1",
		Name: "The Missing Elder",
		Type: TypeSocial,
		SubObjectives: []SubObjective{
			{ID: "sub-a", Description: "Question the disciples", Clues: []Clue{
				{ID: "clue-1", Description: "Torn robe", LeadsTo: []string{"lead-1"}},
				{ID: "clue-2", Description: "Ash footprints", LeadsTo: []string{"lead-1", "lead-2"}},
			}},
			{ID: "sub-b", Description: "Search the archive"},
		},
		Leads: []Lead{
			{ID: "lead-1", Description: "The outer court", Status: LeadLocked},
			{ID: "lead-2", Description: "The alchemist", Status: LeadLocked, Requirements: []Requirement{
				{Kind: RequireSkill, Skill: "Persuasion", Value: 2},
			}},
			{ID: "lead-3", Description: "Rumours", Status: LeadActive},
		},
		TimeRemaining: 10,
	}
}

func newInvestigator() *characters.Character {
	return &characters.Character{
		ID: "char-1",
		Qi: characters.QiPool{Current: 10, Max: 100},
		Skills: []characters.Skill{
			{Name: "Persuasion", Level: 3, Type: characters.SkillSocial},
			{Name: "Sword Art", Level: 9, Type: characters.SkillCombat},
		},
	}
}

func TestAdvanceDecaysTimer(t *testing.T) {
	inv := newTestInvestigation()

	if Advance(inv, 4) {
		t.Fatal("completed early")
	}
	if inv.TimeRemaining != 6 {
		t.Fatalf("time remaining = %v, want 6", inv.TimeRemaining)
	}
	if !Advance(inv, 8) {
		t.Fatal("expected completion")
	}
	if inv.TimeRemaining != 0 || inv.Status != StatusComplete {
		t.Fatalf("time %v status %s", inv.TimeRemaining, inv.Status)
	}
	if Advance(inv, 1) {
		t.Fatal("completed twice")
	}
}

func TestUpdateProgressRecomputesMainObjective(t *testing.T) {
	inv := newTestInvestigation()
	rng := draws(0.99)

	if _, err := UpdateProgress(inv, "sub-a", 40, newInvestigator(), rng); err != nil {
		t.Fatal(err)
	}
	upd, err := UpdateProgress(inv, "sub-b", 60, newInvestigator(), rng)
	if err != nil {
		t.Fatal(err)
	}
	if upd.MainProgress != 50 || inv.MainObjective.Progress != 50 {
		t.Fatalf("main progress = %d, want 50", upd.MainProgress)
	}
}

func TestUpdateProgressClampsAndRejects(t *testing.T) {
	inv := newTestInvestigation()

	upd, err := UpdateProgress(inv, "sub-b", 250, newInvestigator(), draws(0.99))
	if err != nil {
		t.Fatal(err)
	}
	if upd.Progress != 100 {
		t.Fatalf("progress = %v, want 100", upd.Progress)
	}

	_, err = UpdateProgress(inv, "sub-b", -1, newInvestigator(), draws(0))
	if !errors.Is(err, apperrors.New(apperrors.CodeValidation, "")) {
		t.Fatalf("err = %v, want validation", err)
	}
	if sub, _ := inv.SubObjective("sub-b"); sub.Progress != 100 {
		t.Fatalf("rejected update mutated progress to %v", sub.Progress)
	}

	_, err = UpdateProgress(inv, "missing", 10, newInvestigator(), draws(0))
	if !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestClueDiscoveryUnlocksLeadsOnce(t *testing.T) {
	inv := newTestInvestigation()
	// chance = 20 * 0.5 + 2 * 3 = 16; first roll 10 hits, second 50 misses.
	upd, err := UpdateProgress(inv, "sub-a", 20, newInvestigator(), draws(0.10, 0.50))
	if err != nil {
		t.Fatal(err)
	}
	if len(upd.Discoveries) != 1 || upd.Discoveries[0].ClueID != "clue-1" {
		t.Fatalf("discoveries = %+v", upd.Discoveries)
	}
	if got := upd.Discoveries[0].UnlockedLeads; len(got) != 1 || got[0] != "lead-1" {
		t.Fatalf("unlocked = %v", got)
	}

	// clue-2 now found; lead-1 is already Unexamined so only lead-2 unlocks.
	upd, err = UpdateProgress(inv, "sub-a", 20, newInvestigator(), draws(0.01))
	if err != nil {
		t.Fatal(err)
	}
	if len(upd.Discoveries) != 1 || upd.Discoveries[0].ClueID != "clue-2" {
		t.Fatalf("discoveries = %+v", upd.Discoveries)
	}
	if got := upd.Discoveries[0].UnlockedLeads; len(got) != 1 || got[0] != "lead-2" {
		t.Fatalf("unlocked = %v", got)
	}

	upd, _ = UpdateProgress(inv, "sub-a", 20, newInvestigator(), draws(0))
	if len(upd.Discoveries) != 0 {
		t.Fatalf("rediscovered clues %+v", upd.Discoveries)
	}
}

func TestClueDiscoveryIsMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		inv := newTestInvestigation()
		steps := rapid.SliceOfN(rapid.Float64Range(0, 100), 1, 10).Draw(t, "progress")
		rolls := rapid.SliceOfN(rapid.Float64Range(0, 0.999), 1, 30).Draw(t, "rolls")
		rng := draws(rolls...)

		found := map[string]bool{}
		for _, p := range steps {
			if _, err := UpdateProgress(inv, "sub-a", p, newInvestigator(), rng); err != nil {
				t.Fatal(err)
			}
			for _, c := range inv.SubObjectives[0].Clues {
				if found[c.ID] && !c.Discovered {
					t.Fatalf("clue %s was undiscovered", c.ID)
				}
				found[c.ID] = c.Discovered
			}
		}
	})
}

func TestUpdateProgressCompletesWhenAllObjectivesDone(t *testing.T) {
	inv := newTestInvestigation()
	rng := draws(0.99)

	UpdateProgress(inv, "sub-a", 100, newInvestigator(), rng)
	upd, err := UpdateProgress(inv, "sub-b", 100, newInvestigator(), rng)
	if err != nil {
		t.Fatal(err)
	}
	if !upd.Completed || inv.Status != StatusComplete {
		t.Fatal("expected completion")
	}

	_, err = UpdateProgress(inv, "sub-b", 50, newInvestigator(), rng)
	if !errors.Is(err, apperrors.New(apperrors.CodePrecondition, "")) {
		t.Fatalf("err = %v, want precondition", err)
	}
}

func TestActiveLeads(t *testing.T) {
	inv := newTestInvestigation()
	inv.Leads[0].Status = LeadUnexamined
	inv.Leads = append(inv.Leads, Lead{ID: "lead-4", Status: LeadExhausted})

	got := inv.ActiveLeads()
	if len(got) != 2 || got[0].ID != "lead-1" || got[1].ID != "lead-3" {
		t.Fatalf("active leads = %+v", got)
	}
}

func TestExamineLead(t *testing.T) {
	inv := newTestInvestigation()
	c := newInvestigator()

	if err := ExamineLead(inv, "lead-2", c); !errors.Is(err, apperrors.New(apperrors.CodeLeadLocked, "")) {
		t.Fatalf("err = %v, want lead locked", err)
	}

	inv.Leads[1].Status = LeadUnexamined
	c.Skills[0].Level = 1
	if err := ExamineLead(inv, "lead-2", c); !errors.Is(err, apperrors.New(apperrors.CodeRequirementsNotMet, "")) {
		t.Fatalf("err = %v, want requirements not met", err)
	}

	c.Skills[0].Level = 2
	if err := ExamineLead(inv, "lead-2", c); err != nil {
		t.Fatal(err)
	}
	if inv.Leads[1].Status != LeadActive {
		t.Fatalf("status = %s", inv.Leads[1].Status)
	}
	if err := ExhaustLead(inv, "lead-2"); err != nil {
		t.Fatal(err)
	}
	if err := ExhaustLead(inv, "lead-2"); !errors.Is(err, apperrors.New(apperrors.CodeInvalidTransition, "")) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
}

func TestUnknownLeadRequirementFailsClosed(t *testing.T) {
	lead := Lead{Requirements: []Requirement{{Kind: "Karma", Value: 0}}}
	if lead.RequirementsMet(newInvestigator()) {
		t.Fatal("unknown requirement kind passed")
	}
}

func TestOpen(t *testing.T) {
	inv := newTestInvestigation()
	inv.Leads[0].Status = ""
	inv.SubObjectives[0].Progress = 50

	if err := Open(inv); err != nil {
		t.Fatal(err)
	}
	if inv.Status != StatusActive || inv.MainObjective.Progress != 25 {
		t.Fatalf("status %s main %d", inv.Status, inv.MainObjective.Progress)
	}
	if inv.Leads[0].Status != LeadLocked {
		t.Fatalf("default lead status = %s", inv.Leads[0].Status)
	}

	bad := newTestInvestigation()
	bad.SubObjectives[1].ID = "sub-a"
	if err := Open(bad); !errors.Is(err, apperrors.New(apperrors.CodeValidation, "")) {
		t.Fatalf("err = %v, want validation", err)
	}
}
