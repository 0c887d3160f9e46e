package forsys

import (
	"fmt"
	"strconv"
	"strings"
)

// ScenarioGroup is the set of rows sharing one weight combination.
type ScenarioGroup struct {
	Key     string
	Weights []float64 // aligned with Schema.Priorities
	Rows    []RawRow  // in table order
}

// WeightMap returns the weight combination keyed by priority name.
func (g *ScenarioGroup) WeightMap(priorities []string) map[string]float64 {
	m := make(map[string]float64, len(priorities))
	for i, p := range priorities {
		m[p] = g.Weights[i]
	}
	return m
}

// ScenarioKey renders a weight combination as space-separated
// "priority:weight" pairs in priority order, e.g. "p1:1 p2:2".
// Whole weights render without a fractional part.
func ScenarioKey(priorities []string, weights []float64) string {
	var b strings.Builder
	for i, p := range priorities {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
		b.WriteByte(':')
		b.WriteString(FormatWeight(weights[i]))
	}
	return b.String()
}

// FormatWeight renders a weight the way it appears in scenario keys.
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

// GroupScenarios reads every row through the schema and partitions them by
// exact weight tuple. Groups are returned in order of first appearance; rows
// keep table order within a group. A project id repeated inside one group is
// reported as malformed input.
func GroupScenarios(src Source, s *Schema) ([]*ScenarioGroup, error) {
	var groups []*ScenarioGroup
	byKey := make(map[string]*ScenarioGroup)
	seen := make(map[string]map[int64]int)

	for row := 0; row < src.NumRows(); row++ {
		r, err := s.ReadRow(src, row)
		if err != nil {
			return nil, err
		}

		// The rendered key is a faithful tuple key: shortest round-trip
		// formatting is injective on finite float64s once -0 is folded.
		key := ScenarioKey(s.Priorities, r.Weights)
		g, ok := byKey[key]
		if !ok {
			g = &ScenarioGroup{Key: key, Weights: r.Weights}
			byKey[key] = g
			groups = append(groups, g)
			seen[key] = make(map[int64]int)
		}

		if first, dup := seen[key][r.ProjectID]; dup {
			return nil, &MalformedInputError{
				Row:    row,
				Column: s.ProjectIDColumn,
				Reason: fmt.Sprintf("project %d repeated in scenario %q (first at row %d)", r.ProjectID, key, first),
			}
		}
		seen[key][r.ProjectID] = row
		g.Rows = append(g.Rows, r)
	}
	return groups, nil
}
