package characters

// AddEffect attaches an effect. A non-stackable effect replaces any effect
// with the same identity. A stackable effect already present gains one stack,
// capped at MaxStacks, and the incoming copy is discarded.
func (c *Character) AddEffect(e Effect) {
	e = e.Clone()
	id := e.Identity()

	if e.Stackable {
		for i := range c.Effects {
			if c.Effects[i].Identity() == id {
				existing := &c.Effects[i]
				existing.CurrentStacks = min(existing.Stacks()+1, max(existing.MaxStacks, 1))
				return
			}
		}
		e.CurrentStacks = 1
		c.Effects = append(c.Effects, e)
		return
	}

	c.RemoveEffect(id)
	c.Effects = append(c.Effects, e)
}

// RemoveEffect detaches every effect with the given identity and reports
// whether any was present.
func (c *Character) RemoveEffect(id string) bool {
	n := 0
	for _, e := range c.Effects {
		if e.Identity() != id {
			c.Effects[n] = e
			n++
		}
	}
	removed := n != len(c.Effects)
	c.Effects = c.Effects[:n]
	return removed
}

// ExpireEffects decrements finite durations by hours and drops effects that
// reach zero. Permanent effects are untouched. It returns the expired effects.
func (c *Character) ExpireEffects(hours float64) []Effect {
	var expired []Effect
	n := 0
	for _, e := range c.Effects {
		if e.Duration != nil {
			remaining := *e.Duration - hours
			if remaining <= 0 {
				expired = append(expired, e)
				continue
			}
			e.Duration = &remaining
		}
		c.Effects[n] = e
		n++
	}
	c.Effects = c.Effects[:n]
	return expired
}
