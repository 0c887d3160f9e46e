// Package forsys turns the raw project table produced by the ForSys
// prioritization engine into ranked, budget-constrained project lists, one per
// combination of priority weights the engine evaluated.
//
// The pipeline is Schema → GroupScenarios → ScoreAndRank → SelectWithinBudget;
// ParseScenarioSet runs all four stages.
package forsys

import (
	"errors"
	"fmt"
	"math"

	"forsysrank/internal/table"
)

// Column naming conventions of the engine output.
const (
	WeightPrefix = "Pr_"
	ScorePrefix  = "ETrt_"
	EffectPrefix = "ETrt_"
)

// WeightColumn names the weight column of the priority at 1-based position rank.
func WeightColumn(rank int, priority string) string {
	return fmt.Sprintf("%s%d_%s", WeightPrefix, rank, priority)
}

// ScoreColumn names the raw score column of a priority.
func ScoreColumn(priority string) string {
	return ScorePrefix + priority
}

// EffectColumn names the treatment-effect column of an area or cost field.
func EffectColumn(field string) string {
	return EffectPrefix + field
}

// Source is the read side of a raw engine table.
type Source interface {
	Columns() []string
	NumRows() int
	Float(column string, row int) (float64, error)
	Int(column string, row int) (int64, error)
}

var _ Source = (*table.Table)(nil)

// Schema maps the logical fields of one engine run onto physical columns.
// It is validated once on construction; everything downstream reads rows
// through it.
type Schema struct {
	Priorities      []string
	WeightColumns   []string
	ScoreColumns    []string
	ProjectIDColumn string
	AreaColumn      string
	CostColumn      string
}

// NewSchema resolves the expected columns and checks them against the
// available ones. Columns are checked in order (weights by rank, scores,
// project id, area, cost) and the first missing one is reported as a
// *HeaderError. Unexpected extra columns are ignored.
func NewSchema(columns []string, p Params) (*Schema, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s := &Schema{
		Priorities:      append([]string(nil), p.Priorities...),
		WeightColumns:   make([]string, len(p.Priorities)),
		ScoreColumns:    make([]string, len(p.Priorities)),
		ProjectIDColumn: p.ProjectIDField,
		AreaColumn:      EffectColumn(p.AreaField),
		CostColumn:      EffectColumn(p.CostField),
	}
	for i, name := range p.Priorities {
		s.WeightColumns[i] = WeightColumn(i+1, name)
		s.ScoreColumns[i] = ScoreColumn(name)
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range s.required() {
		if !present[c] {
			return nil, &HeaderError{Header: c}
		}
	}
	return s, nil
}

func (s *Schema) required() []string {
	out := make([]string, 0, 2*len(s.Priorities)+3)
	out = append(out, s.WeightColumns...)
	out = append(out, s.ScoreColumns...)
	return append(out, s.ProjectIDColumn, s.AreaColumn, s.CostColumn)
}

// RawRow is one project observation under one weight combination.
type RawRow struct {
	Index     int // zero-based row in the source table
	ProjectID int64
	Scores    []float64 // aligned with Schema.Priorities
	Weights   []float64 // aligned with Schema.Priorities
	Area      float64
	Cost      float64
}

// ReadRow extracts and validates one row.
func (s *Schema) ReadRow(src Source, row int) (RawRow, error) {
	r := RawRow{
		Index:   row,
		Scores:  make([]float64, len(s.Priorities)),
		Weights: make([]float64, len(s.Priorities)),
	}

	id, err := src.Int(s.ProjectIDColumn, row)
	if err != nil {
		return r, malformed(row, s.ProjectIDColumn, err)
	}
	r.ProjectID = id

	for i := range s.Priorities {
		if r.Weights[i], err = readFloat(src, s.WeightColumns[i], row); err != nil {
			return r, err
		}
		if r.Weights[i] == 0 {
			r.Weights[i] = 0 // fold -0 so it groups with 0
		}
		if r.Scores[i], err = readFloat(src, s.ScoreColumns[i], row); err != nil {
			return r, err
		}
	}

	if r.Area, err = readFloat(src, s.AreaColumn, row); err != nil {
		return r, err
	}
	if r.Area < 0 {
		return r, &MalformedInputError{Row: row, Column: s.AreaColumn, Reason: fmt.Sprintf("negative area %v", r.Area)}
	}
	if r.Cost, err = readFloat(src, s.CostColumn, row); err != nil {
		return r, err
	}
	if r.Cost < 0 {
		return r, &MalformedInputError{Row: row, Column: s.CostColumn, Reason: fmt.Sprintf("negative cost %v", r.Cost)}
	}
	return r, nil
}

func malformed(row int, column string, err error) error {
	reason := err.Error()
	var cellErr *table.CellError
	if errors.As(err, &cellErr) {
		reason = fmt.Sprintf("%v (got %v)", cellErr.Err, cellErr.Value)
	}
	return &MalformedInputError{Row: row, Column: column, Reason: reason, Err: err}
}

func readFloat(src Source, column string, row int) (float64, error) {
	f, err := src.Float(column, row)
	if err != nil {
		return 0, malformed(row, column, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &MalformedInputError{Row: row, Column: column, Reason: fmt.Sprintf("non-finite value %v", f)}
	}
	return f, nil
}
