package forsys

import (
	"context"
	"sort"

	"forsysrank/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Scenario is the ranked, budget-filtered result for one weight combination.
// RankedProjects holds only included projects; the cumulative sequences are
// aligned with it.
type Scenario struct {
	Key                         string             `json:"-"`
	PriorityWeights             map[string]float64 `json:"priority_weights"`
	RankedProjects              []ProjectScore     `json:"ranked_projects"`
	CumulativeRankedProjectArea []float64          `json:"cumulative_ranked_project_area"`
	CumulativeRankedProjectCost []float64          `json:"cumulative_ranked_project_cost"`
	SkippedProjectIDs           []int64            `json:"skipped_project_ids,omitempty"`
}

// Summary is a per-scenario digest for listings.
type Summary struct {
	Key       string
	Included  int
	Skipped   int
	TotalArea float64
	TotalCost float64
}

// Summary reports counts and final cumulative totals.
func (s *Scenario) Summary() Summary {
	sum := Summary{
		Key:      s.Key,
		Included: len(s.RankedProjects),
		Skipped:  len(s.SkippedProjectIDs),
	}
	if n := len(s.CumulativeRankedProjectArea); n > 0 {
		sum.TotalArea = s.CumulativeRankedProjectArea[n-1]
		sum.TotalCost = s.CumulativeRankedProjectCost[n-1]
	}
	return sum
}

// ScenarioSet is the full result of one transformation.
type ScenarioSet struct {
	Params    Params               `json:"params"`
	Scenarios map[string]*Scenario `json:"scenarios"`
}

// Keys returns the scenario keys in sorted order.
func (s *ScenarioSet) Keys() []string {
	keys := make([]string, 0, len(s.Scenarios))
	for k := range s.Scenarios {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BuildScenario scores, ranks and budget-filters one group.
func BuildScenario(priorities []string, g *ScenarioGroup, b Budget) *Scenario {
	ranked := ScoreAndRank(priorities, g)
	sel := SelectWithinBudget(ranked, b)

	sc := &Scenario{
		Key:                         g.Key,
		PriorityWeights:             g.WeightMap(priorities),
		RankedProjects:              make([]ProjectScore, len(sel.Included)),
		CumulativeRankedProjectArea: sel.CumulativeArea,
		CumulativeRankedProjectCost: sel.CumulativeCost,
	}
	for i, p := range sel.Included {
		sc.RankedProjects[i] = p.ProjectScore
	}
	for _, p := range sel.Skipped {
		sc.SkippedProjectIDs = append(sc.SkippedProjectIDs, p.ID)
	}
	return sc
}

// ParseScenarioSet runs the whole pipeline over one engine table. Any schema
// or input error aborts the run without partial results. Scenarios are
// independent and are built on up to p.Workers goroutines.
func ParseScenarioSet(ctx context.Context, src Source, p Params) (*ScenarioSet, error) {
	timer := logging.StartTimer(logging.CategoryForsys, "ParseScenarioSet")
	defer timer.Stop()

	schema, err := NewSchema(src.Columns(), p)
	if err != nil {
		logging.ForsysWarn("schema rejected: %v", err)
		return nil, err
	}

	groups, err := GroupScenarios(src, schema)
	if err != nil {
		logging.ForsysWarn("grouping failed: %v", err)
		return nil, err
	}
	logging.Forsys("%d rows grouped into %d scenarios", src.NumRows(), len(groups))

	budget := Budget{MaxArea: p.MaxArea, MaxCost: p.MaxCost}
	results := make([]*Scenario, len(groups))

	eg, egCtx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	eg.SetLimit(workers)

	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = BuildScenario(schema.Priorities, g, budget)
			logging.ForsysDebug("scenario %q: %d ranked, %d included", g.Key, len(g.Rows), len(results[i].RankedProjects))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	set := &ScenarioSet{
		Params:    p,
		Scenarios: make(map[string]*Scenario, len(results)),
	}
	for _, sc := range results {
		set.Scenarios[sc.Key] = sc
	}
	return set, nil
}
