package forsys

import "sort"

// ProjectScore is one project's result within a scenario.
type ProjectScore struct {
	ID                     int64              `json:"id"`
	WeightedPriorityScores map[string]float64 `json:"weighted_priority_scores"`
	TotalScore             float64            `json:"total_score"`
	Rank                   int                `json:"rank"`
}

// RankedProject carries the area and cost the budget selector needs
// alongside the published score.
type RankedProject struct {
	ProjectScore
	Area float64 `json:"-"`
	Cost float64 `json:"-"`
}

// ScoreAndRank computes weighted and total scores for every row in the group
// and ranks them by total score, highest first. Ranks are 1..N. Equal totals
// keep table order.
func ScoreAndRank(priorities []string, g *ScenarioGroup) []RankedProject {
	ranked := make([]RankedProject, len(g.Rows))
	for i, r := range g.Rows {
		weighted := make(map[string]float64, len(priorities))
		var total float64
		for j, p := range priorities {
			ws := r.Scores[j] * g.Weights[j]
			weighted[p] = ws
			total += ws
		}
		ranked[i] = RankedProject{
			ProjectScore: ProjectScore{
				ID:                     r.ProjectID,
				WeightedPriorityScores: weighted,
				TotalScore:             total,
			},
			Area: r.Area,
			Cost: r.Cost,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}
