// Package table holds the raw column-oriented output of the ForSys scoring
// engine: one named column per output field, one entry per project row.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNoColumn is returned when a lookup names a column the table lacks.
	ErrNoColumn = errors.New("no such column")
	// ErrNotNumeric is returned when a cell cannot be read as a number.
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrNotFinite is returned for NaN and infinite values.
	ErrNotFinite = errors.New("value is not finite")
	// ErrNotIntegral is returned when an integer was expected.
	ErrNotIntegral = errors.New("value is not an integer")
)

// CellError locates a conversion failure.
type CellError struct {
	Column string
	Row    int
	Value  interface{}
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("column %s, row %d: %v (%v)", e.Column, e.Row, e.Err, e.Value)
}

func (e *CellError) Unwrap() error { return e.Err }

// Table is an immutable column-major table. Cells hold whatever the loader
// produced (json.Number, float64, int, string, nil); conversion happens on read.
type Table struct {
	names   []string
	index   map[string]int
	columns [][]interface{}
	rows    int
}

// New builds a table from parallel name and column slices. All columns must
// have the same length and names must be unique.
func New(names []string, columns [][]interface{}) (*Table, error) {
	if len(names) != len(columns) {
		return nil, fmt.Errorf("table: %d names for %d columns", len(names), len(columns))
	}

	t := &Table{
		names:   make([]string, len(names)),
		index:   make(map[string]int, len(names)),
		columns: make([][]interface{}, len(columns)),
		rows:    -1,
	}
	copy(t.names, names)

	for i, name := range names {
		if _, dup := t.index[name]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", name)
		}
		t.index[name] = i

		col := columns[i]
		if t.rows == -1 {
			t.rows = len(col)
		} else if len(col) != t.rows {
			return nil, fmt.Errorf("table: column %q has %d values, expected %d", name, len(col), t.rows)
		}
		t.columns[i] = append([]interface{}(nil), col...)
	}
	if t.rows == -1 {
		t.rows = 0
	}
	return t, nil
}

// FromMap builds a table from a name→values map. Columns are ordered by name.
func FromMap(m map[string][]interface{}) (*Table, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([][]interface{}, len(names))
	for i, name := range names {
		columns[i] = m[name]
	}
	return New(names, columns)
}

// Columns returns the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return t.rows }

// Has reports whether the column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Value returns the raw cell.
func (t *Table) Value(column string, row int) (interface{}, error) {
	i, ok := t.index[column]
	if !ok {
		return nil, &CellError{Column: column, Row: row, Err: ErrNoColumn}
	}
	if row < 0 || row >= t.rows {
		return nil, fmt.Errorf("table: row %d out of range [0,%d)", row, t.rows)
	}
	return t.columns[i][row], nil
}

// Float reads a finite number from a cell.
func (t *Table) Float(column string, row int) (float64, error) {
	v, err := t.Value(column, row)
	if err != nil {
		return 0, err
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, &CellError{Column: column, Row: row, Value: v, Err: err}
	}
	return f, nil
}

// Int reads an integral number from a cell. Float cells holding whole
// numbers (R exports integer ids as doubles) are accepted.
func (t *Table) Int(column string, row int) (int64, error) {
	f, err := t.Float(column, row)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		v, _ := t.Value(column, row)
		return 0, &CellError{Column: column, Row: row, Value: v, Err: ErrNotIntegral}
	}
	return int64(f), nil
}

func toFloat(v interface{}) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, ErrNotNumeric
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" || s == "NA" {
			return 0, ErrNotNumeric
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, ErrNotNumeric
		}
		f = parsed
	default:
		return 0, ErrNotNumeric
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFinite
	}
	return f, nil
}
