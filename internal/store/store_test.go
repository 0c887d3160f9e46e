package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"forsysrank/internal/forsys"
	"forsysrank/internal/table"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("", filepath.Join(t.TempDir(), "scenarios.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func parsedSet(t *testing.T, maxArea *float64) *forsys.ScenarioSet {
	t.Helper()
	tbl, err := table.FromMap(map[string][]interface{}{
		"proj_id":   {1, 2, 3, 2, 1, 3},
		"Pr_1_p1":   {1, 1, 1, 1, 1, 1},
		"Pr_2_p2":   {1, 1, 1, 2, 2, 2},
		"ETrt_p1":   {0.5, 0.1, 0.3, 0.1, 0.5, 0.3},
		"ETrt_p2":   {0.1, 0.4, 0.1, 0.4, 0.1, 0.1},
		"ETrt_area": {10, 11, 12, 11, 10, 12},
		"ETrt_cost": {500, 600, 800, 600, 500, 800},
	})
	require.NoError(t, err)

	set, err := forsys.ParseScenarioSet(context.Background(), tbl, forsys.Params{
		Priorities:     []string{"p1", "p2"},
		ProjectIDField: "proj_id",
		AreaField:      "area",
		CostField:      "cost",
		MaxArea:        maxArea,
	})
	require.NoError(t, err)
	return set
}

func ptr(f float64) *float64 { return &f }

// =============================================================================
// SCENARIO SETS
// =============================================================================

func TestSaveAndLoadScenarioSet(t *testing.T) {
	s := newTestStore(t)
	set := parsedSet(t, ptr(25))

	id, err := s.SaveScenarioSet(set, SaveOptions{Source: "run.json", Label: "baseline", SourceRows: 6})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	saved, err := s.LoadScenarioSet(id)
	require.NoError(t, err)

	assert.Equal(t, id, saved.ID)
	assert.Equal(t, "run.json", saved.Source)
	assert.Equal(t, "baseline", saved.Label)
	assert.Equal(t, 6, saved.SourceRows)
	assert.Equal(t, 2, saved.Scenarios)
	assert.Equal(t, []string{"p1", "p2"}, saved.Priorities)
	assert.WithinDuration(t, time.Now(), saved.CreatedAt, time.Minute)

	if diff := cmp.Diff(set, saved.Set, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadScenarioSet_KeepsSkippedAndOrder(t *testing.T) {
	s := newTestStore(t)
	set := parsedSet(t, ptr(10))

	id, err := s.SaveScenarioSet(set, SaveOptions{Source: "run.json"})
	require.NoError(t, err)

	saved, err := s.LoadScenarioSet(id)
	require.NoError(t, err)

	sc := saved.Set.Scenarios["p1:1 p2:2"]
	require.NotNil(t, sc)
	require.Len(t, sc.RankedProjects, 1)
	assert.Equal(t, int64(1), sc.RankedProjects[0].ID)
	assert.Equal(t, 2, sc.RankedProjects[0].Rank)
	assert.Equal(t, []int64{2, 3}, sc.SkippedProjectIDs)
	assert.Equal(t, []float64{10}, sc.CumulativeRankedProjectArea)
	assert.Equal(t, []float64{500}, sc.CumulativeRankedProjectCost)
}

func TestLoadScenarioSet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadScenarioSet("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListScenarioSets(t *testing.T) {
	s := newTestStore(t)

	sets, err := s.ListScenarioSets()
	require.NoError(t, err)
	assert.Empty(t, sets)

	first, err := s.SaveScenarioSet(parsedSet(t, nil), SaveOptions{Source: "a.json"})
	require.NoError(t, err)
	second, err := s.SaveScenarioSet(parsedSet(t, nil), SaveOptions{Source: "b.csv", Label: "second"})
	require.NoError(t, err)

	sets, err = s.ListScenarioSets()
	require.NoError(t, err)
	require.Len(t, sets, 2)

	// Newest first.
	assert.Equal(t, second, sets[0].ID)
	assert.Equal(t, "second", sets[0].Label)
	assert.Equal(t, first, sets[1].ID)
	for _, info := range sets {
		assert.Equal(t, 2, info.Scenarios)
		assert.Equal(t, []string{"p1", "p2"}, info.Priorities)
	}
}

func TestDeleteScenarioSet(t *testing.T) {
	s := newTestStore(t)

	keep, err := s.SaveScenarioSet(parsedSet(t, nil), SaveOptions{Source: "keep.json"})
	require.NoError(t, err)
	drop, err := s.SaveScenarioSet(parsedSet(t, nil), SaveOptions{Source: "drop.json"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteScenarioSet(drop))

	_, err = s.LoadScenarioSet(drop)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := s.LoadScenarioSet(keep)
	require.NoError(t, err)
	assert.Len(t, saved.Set.Scenarios, 2)

	var orphans int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM ranked_projects WHERE set_id = ?", drop).Scan(&orphans))
	assert.Zero(t, orphans)

	err = s.DeleteScenarioSet(drop)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// INGEST LOG
// =============================================================================

func TestRecordIngest(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordIngest(IngestRecord{Path: "ok.json", Status: IngestSuccess, SetID: "abc"}))
	require.NoError(t, s.RecordIngest(IngestRecord{Path: "bad.json", Status: IngestFailed, Error: "header, Pr_1_p1, is not a forsys output header"}))

	recs, err := s.ListIngests(0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "bad.json", recs[0].Path)
	assert.Equal(t, IngestFailed, recs[0].Status)
	assert.Contains(t, recs[0].Error, "Pr_1_p1")
	assert.Empty(t, recs[0].SetID)

	assert.Equal(t, "ok.json", recs[1].Path)
	assert.Equal(t, "abc", recs[1].SetID)
	assert.False(t, recs[1].ProcessedAt.IsZero())

	recs, err = s.ListIngests(1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

// =============================================================================
// DRIVERS AND MIGRATIONS
// =============================================================================

func TestNewStore_UnsupportedDriver(t *testing.T) {
	_, err := NewStore("postgres", filepath.Join(t.TempDir(), "x.db"))
	assert.Error(t, err)
}

func TestNewStore_CgoDriver(t *testing.T) {
	s, err := NewStore(DriverCgo, filepath.Join(t.TempDir(), "cgo.db"))
	if err != nil {
		t.Skipf("cgo sqlite driver unavailable: %v", err)
	}
	defer s.Close()

	id, err := s.SaveScenarioSet(parsedSet(t, nil), SaveOptions{Source: "cgo.json"})
	require.NoError(t, err)
	saved, err := s.LoadScenarioSet(id)
	require.NoError(t, err)
	assert.Equal(t, DriverCgo, s.Driver())
	assert.Len(t, saved.Set.Scenarios, 2)
}

func TestRunMigrations_AddsMissingColumns(t *testing.T) {
	s := newTestStore(t)

	// Rebuild scenario_sets the way the first schema version had it.
	_, err := s.db.Exec(`
		DROP TABLE scenario_sets;
		CREATE TABLE scenario_sets (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			params_json TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)
	require.False(t, columnExists(s.db, "scenario_sets", "label"))

	require.NoError(t, RunMigrations(s.db))
	assert.True(t, columnExists(s.db, "scenario_sets", "label"))
	assert.True(t, columnExists(s.db, "scenario_sets", "source_rows"))
	assert.Equal(t, CurrentSchemaVersion, GetSchemaVersion(s.db))

	// Idempotent.
	require.NoError(t, RunMigrations(s.db))
}

func TestTableExists(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, tableExists(s.db, "ranked_projects"))
	assert.False(t, tableExists(s.db, "nope"))
}
