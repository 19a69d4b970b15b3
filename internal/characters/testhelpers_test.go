package characters

func newTestCharacter() *Character {
	return &Character{
		ID:    "char-1",
		Name:  "Lin Feng",
		Stage: CultivationStage{Name: "Qi Condensation", Level: 0, Progress: 0},
		Qi:    QiPool{Current: 50, Max: 100},
		Skills: []Skill{
			{Name: "Array Formation", Level: 2, Type: SkillTechnical},
			{Name: "Sword Art", Level: 3, Type: SkillCombat},
		},
	}
}
