package store

import (
	"database/sql"
	"fmt"

	"forsysrank/internal/logging"
)

// Schema versions:
// v1: scenario_sets, scenarios, ranked_projects
// v2: ingest_log for the inbox watcher
// v3: label on scenario_sets, source_rows on scenario_sets
const CurrentSchemaVersion = 3

// Migration adds one column to an existing table.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists columns added after the initial schema.
// Databases created by older builds are missing them.
var pendingMigrations = []Migration{
	{"scenario_sets", "label", "TEXT DEFAULT ''"},
	{"scenario_sets", "source_rows", "INTEGER DEFAULT 0"},
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(stmt); err != nil {
			logging.StoreError("Migration failed: %s.%s: %v", m.Table, m.Column, err)
			return fmt.Errorf("migration %s.%s: %w", m.Table, m.Column, err)
		}
		logging.StoreDebug("Applied migration: %s.%s", m.Table, m.Column)
		applied++
	}

	if _, err := db.Exec(
		`INSERT INTO schema_version (id, version) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version`,
		CurrentSchemaVersion,
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if applied > 0 {
		logging.Store("Applied %d schema migrations", applied)
	}
	return nil
}

// GetSchemaVersion returns the recorded schema version, or 0 if none.
func GetSchemaVersion(db *sql.DB) int {
	var v int
	if err := db.QueryRow("SELECT version FROM schema_version WHERE id = 1").Scan(&v); err != nil {
		return 0
	}
	return v
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	return err == nil
}
