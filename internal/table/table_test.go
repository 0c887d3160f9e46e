package table

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const engineJSON = `{
	"stand": {},
	"project": {
		"proj_id": [1, 2, 3],
		"Pr_1_p1": [1, 1, 1],
		"ETrt_p1": [0.5, 0.1, 0.3],
		"ETrt_area": [10, 11, 12]
	}
}`

func TestNew_RaggedColumns(t *testing.T) {
	_, err := New([]string{"a", "b"}, [][]interface{}{{1, 2}, {1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "b" has 1 values`)
}

func TestNew_DuplicateColumn(t *testing.T) {
	_, err := New([]string{"a", "a"}, [][]interface{}{{1}, {2}})
	require.Error(t, err)
}

func TestNew_Empty(t *testing.T) {
	tbl, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.NumRows())
	assert.Empty(t, tbl.Columns())
}

func TestReadJSON_ProjectEnvelope(t *testing.T) {
	tbl, err := ReadJSON(strings.NewReader(engineJSON))
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, []string{"ETrt_area", "ETrt_p1", "Pr_1_p1", "proj_id"}, tbl.Columns())
	assert.True(t, tbl.Has("proj_id"))
	assert.False(t, tbl.Has("stand"))

	id, err := tbl.Int("proj_id", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	score, err := tbl.Float("ETrt_p1", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-12)
}

func TestReadJSON_BareTable(t *testing.T) {
	tbl, err := ReadJSON(strings.NewReader(`{"proj_id": [7], "ETrt_cost": [500.5]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())

	cost, err := tbl.Float("ETrt_cost", 0)
	require.NoError(t, err)
	assert.InDelta(t, 500.5, cost, 1e-12)
}

func TestReadJSON_NotAnArray(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"proj_id": 1}`))
	require.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffproj_id, Pr_1_p1,ETrt_p1\n1,1,0.5\n2,1,NA\n"
	tbl, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"proj_id", "Pr_1_p1", "ETrt_p1"}, tbl.Columns())
	assert.Equal(t, 2, tbl.NumRows())

	_, err = tbl.Float("ETrt_p1", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotNumeric))

	var cellErr *CellError
	require.ErrorAs(t, err, &cellErr)
	assert.Equal(t, "ETrt_p1", cellErr.Column)
	assert.Equal(t, 1, cellErr.Row)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestInt_RejectsFractions(t *testing.T) {
	tbl, err := New([]string{"id"}, [][]interface{}{{1.5}})
	require.NoError(t, err)

	_, err = tbl.Int("id", 0)
	assert.True(t, errors.Is(err, ErrNotIntegral))
}

func TestFloat_Conversions(t *testing.T) {
	tbl, err := New([]string{"v"}, [][]interface{}{{3, int64(4), float32(0.25), " 2.5 ", nil, true, "Inf"}})
	require.NoError(t, err)

	tests := []struct {
		row  int
		want float64
		err  error
	}{
		{0, 3, nil},
		{1, 4, nil},
		{2, 0.25, nil},
		{3, 2.5, nil},
		{4, 0, ErrNotNumeric},
		{5, 0, ErrNotNumeric},
		{6, 0, ErrNotFinite},
	}
	for _, tt := range tests {
		got, err := tbl.Float("v", tt.row)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, "row %d", tt.row)
			continue
		}
		require.NoError(t, err, "row %d", tt.row)
		assert.InDelta(t, tt.want, got, 1e-12, "row %d", tt.row)
	}
}

func TestValue_UnknownColumn(t *testing.T) {
	tbl, err := New([]string{"v"}, [][]interface{}{{1}})
	require.NoError(t, err)

	_, err = tbl.Value("missing", 0)
	assert.ErrorIs(t, err, ErrNoColumn)

	_, err = tbl.Value("v", 5)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(engineJSON), 0644))
	tbl, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.NumRows())

	csvPath := filepath.Join(dir, "project_output.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("proj_id\n1\n"), 0644))
	tbl, err = LoadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())

	_, err = LoadFile(filepath.Join(dir, "out.parquet"))
	assert.Error(t, err)
}
