package forsys

// Budget holds the optional ceilings on cumulative area and cost.
type Budget struct {
	MaxArea *float64
	MaxCost *float64
}

// Unlimited reports whether neither ceiling is set.
func (b Budget) Unlimited() bool { return b.MaxArea == nil && b.MaxCost == nil }

// Selection is the outcome of walking a ranked list under a budget.
// CumulativeArea[i] and CumulativeCost[i] are the running totals right after
// Included[i] was taken.
type Selection struct {
	Included       []RankedProject
	Skipped        []RankedProject
	CumulativeArea []float64
	CumulativeCost []float64
}

// SelectWithinBudget walks the ranked list once, in rank order. A project
// that would push either active ceiling over its limit is skipped and the
// walk continues, so a lower-ranked project that still fits under the
// current totals is taken. Ranks are left as assigned.
func SelectWithinBudget(ranked []RankedProject, b Budget) Selection {
	sel := Selection{
		Included:       make([]RankedProject, 0, len(ranked)),
		CumulativeArea: make([]float64, 0, len(ranked)),
		CumulativeCost: make([]float64, 0, len(ranked)),
	}

	var cumArea, cumCost float64
	for _, p := range ranked {
		nextArea := cumArea + p.Area
		nextCost := cumCost + p.Cost
		if b.MaxArea != nil && nextArea > *b.MaxArea {
			sel.Skipped = append(sel.Skipped, p)
			continue
		}
		if b.MaxCost != nil && nextCost > *b.MaxCost {
			sel.Skipped = append(sel.Skipped, p)
			continue
		}
		cumArea, cumCost = nextArea, nextCost
		sel.Included = append(sel.Included, p)
		sel.CumulativeArea = append(sel.CumulativeArea, cumArea)
		sel.CumulativeCost = append(sel.CumulativeCost, cumCost)
	}
	return sel
}
