package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forsysrank/internal/forsys"
	"forsysrank/internal/logging"

	"github.com/google/uuid"
)

// SaveOptions describes where a scenario set came from.
type SaveOptions struct {
	Source     string // input file path or "-" for stdin
	Label      string
	SourceRows int
}

// SetInfo is the listing view of a stored scenario set.
type SetInfo struct {
	ID         string    `json:"id"`
	Label      string    `json:"label,omitempty"`
	Source     string    `json:"source"`
	SourceRows int       `json:"source_rows"`
	Priorities []string  `json:"priorities"`
	Scenarios  int       `json:"scenarios"`
	CreatedAt  time.Time `json:"created_at"`
}

// SavedSet is a stored scenario set together with its metadata.
type SavedSet struct {
	SetInfo
	Set *forsys.ScenarioSet `json:"set"`
}

// SaveScenarioSet writes a scenario set in one transaction and returns its
// generated id.
func (s *Store) SaveScenarioSet(set *forsys.ScenarioSet, opts SaveOptions) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SaveScenarioSet")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := json.Marshal(set.Params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	id := uuid.NewString()
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO scenario_sets (id, source, params_json, created_at, label, source_rows)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, opts.Source, string(paramsJSON), time.Now().UnixMilli(), opts.Label, opts.SourceRows)
	if err != nil {
		return "", fmt.Errorf("failed to insert scenario set: %w", err)
	}

	scenarioStmt, err := tx.Prepare(`
		INSERT INTO scenarios (set_id, scenario_key, weights_json, skipped_json)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer scenarioStmt.Close()

	projectStmt, err := tx.Prepare(`
		INSERT INTO ranked_projects (set_id, scenario_key, position, project_id, rank,
			total_score, weighted_scores_json, cumulative_area, cumulative_cost)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer projectStmt.Close()

	for _, key := range set.Keys() {
		sc := set.Scenarios[key]
		weightsJSON, _ := json.Marshal(sc.PriorityWeights)
		skipped := sc.SkippedProjectIDs
		if skipped == nil {
			skipped = []int64{}
		}
		skippedJSON, _ := json.Marshal(skipped)

		if _, err := scenarioStmt.Exec(id, key, string(weightsJSON), string(skippedJSON)); err != nil {
			return "", fmt.Errorf("failed to insert scenario %q: %w", key, err)
		}

		for pos, p := range sc.RankedProjects {
			scoresJSON, _ := json.Marshal(p.WeightedPriorityScores)
			if _, err := projectStmt.Exec(id, key, pos, p.ID, p.Rank, p.TotalScore, string(scoresJSON),
				sc.CumulativeRankedProjectArea[pos], sc.CumulativeRankedProjectCost[pos]); err != nil {
				return "", fmt.Errorf("failed to insert project %d in scenario %q: %w", p.ID, key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit scenario set: %w", err)
	}

	logging.Store("Saved scenario set %s (%d scenarios) from %s", id, len(set.Scenarios), opts.Source)
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditStoreSave,
		RunID:     id,
		Target:    opts.Source,
		Success:   true,
		Fields:    map[string]interface{}{"scenarios": len(set.Scenarios)},
	})
	return id, nil
}

// LoadScenarioSet reads a stored scenario set back.
func (s *Store) LoadScenarioSet(id string) (*SavedSet, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadScenarioSet")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, params, err := s.loadInfo(id)
	if err != nil {
		return nil, err
	}

	set := &forsys.ScenarioSet{
		Params:    params,
		Scenarios: make(map[string]*forsys.Scenario),
	}

	rows, err := s.db.Query(`
		SELECT scenario_key, weights_json, skipped_json
		FROM scenarios WHERE set_id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	for rows.Next() {
		var key, weightsJSON, skippedJSON string
		if err := rows.Scan(&key, &weightsJSON, &skippedJSON); err != nil {
			rows.Close()
			return nil, err
		}
		sc := &forsys.Scenario{
			Key:                         key,
			RankedProjects:              []forsys.ProjectScore{},
			CumulativeRankedProjectArea: []float64{},
			CumulativeRankedProjectCost: []float64{},
		}
		if err := json.Unmarshal([]byte(weightsJSON), &sc.PriorityWeights); err != nil {
			rows.Close()
			return nil, fmt.Errorf("corrupt weights for scenario %q: %w", key, err)
		}
		if err := json.Unmarshal([]byte(skippedJSON), &sc.SkippedProjectIDs); err != nil {
			rows.Close()
			return nil, fmt.Errorf("corrupt skipped ids for scenario %q: %w", key, err)
		}
		if len(sc.SkippedProjectIDs) == 0 {
			sc.SkippedProjectIDs = nil
		}
		set.Scenarios[key] = sc
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.db.Query(`
		SELECT scenario_key, project_id, rank, total_score, weighted_scores_json,
			cumulative_area, cumulative_cost
		FROM ranked_projects WHERE set_id = ?
		ORDER BY scenario_key, position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query ranked projects: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			key        string
			p          forsys.ProjectScore
			scoresJSON string
			area, cost float64
		)
		if err := prows.Scan(&key, &p.ID, &p.Rank, &p.TotalScore, &scoresJSON, &area, &cost); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(scoresJSON), &p.WeightedPriorityScores); err != nil {
			return nil, fmt.Errorf("corrupt scores for project %d: %w", p.ID, err)
		}
		sc, ok := set.Scenarios[key]
		if !ok {
			return nil, fmt.Errorf("ranked project %d references unknown scenario %q", p.ID, key)
		}
		sc.RankedProjects = append(sc.RankedProjects, p)
		sc.CumulativeRankedProjectArea = append(sc.CumulativeRankedProjectArea, area)
		sc.CumulativeRankedProjectCost = append(sc.CumulativeRankedProjectCost, cost)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	info.Scenarios = len(set.Scenarios)
	return &SavedSet{SetInfo: *info, Set: set}, nil
}

func (s *Store) loadInfo(id string) (*SetInfo, forsys.Params, error) {
	var (
		info       SetInfo
		paramsJSON string
		createdMs  int64
		label      sql.NullString
		sourceRows sql.NullInt64
		params     forsys.Params
	)
	err := s.db.QueryRow(`
		SELECT id, source, params_json, created_at, label, source_rows
		FROM scenario_sets WHERE id = ?
	`, id).Scan(&info.ID, &info.Source, &paramsJSON, &createdMs, &label, &sourceRows)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, params, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, params, fmt.Errorf("failed to query scenario set: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return nil, params, fmt.Errorf("corrupt params for scenario set %s: %w", id, err)
	}
	info.Label = label.String
	info.SourceRows = int(sourceRows.Int64)
	info.Priorities = params.Priorities
	info.CreatedAt = time.UnixMilli(createdMs)
	return &info, params, nil
}

// ListScenarioSets returns all stored sets, newest first.
func (s *Store) ListScenarioSets() ([]SetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT ss.id, ss.source, ss.params_json, ss.created_at, ss.label, ss.source_rows,
			(SELECT COUNT(*) FROM scenarios sc WHERE sc.set_id = ss.id)
		FROM scenario_sets ss
		ORDER BY ss.created_at DESC, ss.rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenario sets: %w", err)
	}
	defer rows.Close()

	var out []SetInfo
	for rows.Next() {
		var (
			info       SetInfo
			paramsJSON string
			createdMs  int64
			label      sql.NullString
			sourceRows sql.NullInt64
			params     forsys.Params
		)
		if err := rows.Scan(&info.ID, &info.Source, &paramsJSON, &createdMs, &label, &sourceRows, &info.Scenarios); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(paramsJSON), &params); err == nil {
			info.Priorities = params.Priorities
		} else {
			logging.StoreError("Corrupt params for scenario set %s: %v", info.ID, err)
		}
		info.Label = label.String
		info.SourceRows = int(sourceRows.Int64)
		info.CreatedAt = time.UnixMilli(createdMs)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteScenarioSet removes a set and everything under it.
func (s *Store) DeleteScenarioSet(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM ranked_projects WHERE set_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM scenarios WHERE set_id = ?", id); err != nil {
		return err
	}
	res, err := tx.Exec("DELETE FROM scenario_sets WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logging.Store("Deleted scenario set %s", id)
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditStoreDelete,
		RunID:     id,
		Success:   true,
	})
	return nil
}
