package investigation

import (
	"fmt"
	"math"

	"github.com/talgya/ascension/internal/characters"
	apperrors "github.com/talgya/ascension/internal/errors"
	"github.com/talgya/ascension/internal/probability"
)

// Source yields uniform draws in [0,1).
type Source interface {
	Float() float64
}

// Discovery records a clue found during a progress update.
type Discovery struct {
	SubObjectiveID string   `json:"sub_objective_id"`
	ClueID         string   `json:"clue_id"`
	Chance         float64  `json:"chance"`
	Roll           float64  `json:"roll"`
	UnlockedLeads  []string `json:"unlocked_leads,omitempty"`
}

// Update summarises one progress update.
type Update struct {
	InvestigationID string      `json:"investigation_id"`
	SubObjectiveID  string      `json:"sub_objective_id"`
	Progress        float64     `json:"progress"`
	MainProgress    int         `json:"main_progress"`
	Discoveries     []Discovery `json:"discoveries,omitempty"`
	Completed       bool        `json:"completed"`
}

// Advance decays the investigation timer by hours and reports whether the
// investigation completed as a result.
func Advance(inv *Investigation, hours float64) bool {
	if inv.Complete() {
		return false
	}
	inv.TimeRemaining = math.Max(0, inv.TimeRemaining-hours)
	if inv.TimeRemaining == 0 || inv.AllObjectivesComplete() {
		inv.Status = StatusComplete
		return true
	}
	return false
}

// UpdateProgress sets a sub-objective's progress on behalf of actor, rolls
// once for each undiscovered clue in it, and recomputes the main objective.
// Negative or non-finite progress is rejected; progress above 100 is clamped.
func UpdateProgress(inv *Investigation, subObjectiveID string, progress float64, actor *characters.Character, rng Source) (Update, error) {
	if math.IsNaN(progress) || math.IsInf(progress, 0) || progress < 0 {
		return Update{}, apperrors.Validation(fmt.Sprintf("progress %v must be a non-negative number", progress))
	}
	if inv.Complete() {
		return Update{}, apperrors.New(apperrors.CodePrecondition, "investigation already complete: "+inv.ID)
	}
	sub, ok := inv.SubObjective(subObjectiveID)
	if !ok {
		return Update{}, apperrors.NotFound("sub-objective", subObjectiveID)
	}

	sub.Progress = probability.Clamp(progress, 0, probability.MaxProgress)
	upd := Update{
		InvestigationID: inv.ID,
		SubObjectiveID:  sub.ID,
		Progress:        sub.Progress,
	}

	skillLevels := actor.SkillLevels(func(s characters.Skill) bool { return s.Type.Investigative() })
	chance := probability.DiscoveryChance(sub.Progress, skillLevels)
	for i := range sub.Clues {
		clue := &sub.Clues[i]
		if clue.Discovered {
			continue
		}
		roll := probability.Percent(rng.Float())
		if !probability.Succeeds(roll, chance) {
			continue
		}
		clue.Discovered = true
		upd.Discoveries = append(upd.Discoveries, Discovery{
			SubObjectiveID: sub.ID,
			ClueID:         clue.ID,
			Chance:         chance,
			Roll:           roll,
			UnlockedLeads:  inv.unlockLeads(clue.LeadsTo),
		})
	}

	upd.MainProgress = inv.RecomputeMainObjective()
	if inv.AllObjectivesComplete() {
		inv.Status = StatusComplete
		upd.Completed = true
	}
	return upd, nil
}

// unlockLeads moves Locked leads to Unexamined and returns those it moved.
func (inv *Investigation) unlockLeads(ids []string) []string {
	var unlocked []string
	for _, id := range ids {
		lead, ok := inv.Lead(id)
		if !ok || lead.Status != LeadLocked {
			continue
		}
		lead.Status = LeadUnexamined
		unlocked = append(unlocked, id)
	}
	return unlocked
}

// ExamineLead moves an Unexamined lead to Active once the character meets
// its requirements.
func ExamineLead(inv *Investigation, leadID string, c *characters.Character) error {
	lead, ok := inv.Lead(leadID)
	if !ok {
		return apperrors.NotFound("lead", leadID)
	}
	switch lead.Status {
	case LeadLocked:
		return apperrors.New(apperrors.CodeLeadLocked, "lead is locked: "+leadID)
	case LeadUnexamined:
	default:
		return apperrors.New(apperrors.CodeInvalidTransition, fmt.Sprintf("lead %s is %s", leadID, lead.Status))
	}
	if !lead.RequirementsMet(c) {
		return apperrors.New(apperrors.CodeRequirementsNotMet, "requirements not met for lead: "+leadID)
	}
	lead.Status = LeadActive
	return nil
}

// ExhaustLead marks an Active lead as Exhausted.
func ExhaustLead(inv *Investigation, leadID string) error {
	lead, ok := inv.Lead(leadID)
	if !ok {
		return apperrors.NotFound("lead", leadID)
	}
	if lead.Status != LeadActive {
		return apperrors.New(apperrors.CodeInvalidTransition, fmt.Sprintf("lead %s is %s", leadID, lead.Status))
	}
	lead.Status = LeadExhausted
	return nil
}

// Open validates a new investigation and puts it into its initial state.
func Open(inv *Investigation) error {
	if inv.Name == "" {
		return apperrors.Validation("investigation name is required")
	}
	if math.IsNaN(inv.TimeRemaining) || inv.TimeRemaining <= 0 {
		return apperrors.Validation("investigation time remaining must be positive")
	}
	seen := make(map[string]bool, len(inv.SubObjectives))
	for i := range inv.SubObjectives {
		sub := &inv.SubObjectives[i]
		if sub.ID == "" || seen[sub.ID] {
			return apperrors.Validation(fmt.Sprintf("sub-objective %d needs a unique id", i))
		}
		seen[sub.ID] = true
		if sub.Progress < 0 || sub.Progress > probability.MaxProgress {
			return apperrors.Validation(fmt.Sprintf("sub-objective %s progress %v outside [0, 100]", sub.ID, sub.Progress))
		}
		if sub.RequiredProgress == 0 {
			sub.RequiredProgress = probability.MaxProgress
		}
	}
	for i := range inv.Leads {
		if inv.Leads[i].Status == "" {
			inv.Leads[i].Status = LeadLocked
		}
	}
	inv.Status = StatusActive
	inv.RecomputeMainObjective()
	return nil
}
