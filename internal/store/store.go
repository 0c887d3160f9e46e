// Package store persists parsed scenario sets in SQLite so rankings can be
// listed, reloaded and compared after the engine output is gone.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"forsysrank/internal/logging"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverPureGo = "sqlite"  // modernc.org/sqlite
	DriverCgo    = "sqlite3" // github.com/mattn/go-sqlite3
)

// ErrNotFound is returned when a scenario set id is unknown.
var ErrNotFound = errors.New("scenario set not found")

// Store manages the scenario database.
type Store struct {
	db     *sql.DB
	dbPath string
	driver string
	mu     sync.RWMutex
}

// NewStore creates or opens a scenario store at dbPath using the named driver.
// An empty driver selects the pure Go driver.
func NewStore(driver, dbPath string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewStore")
	defer timer.Stop()

	if driver == "" {
		driver = DriverPureGo
	}

	var dsn string
	switch driver {
	case DriverCgo:
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	case DriverPureGo:
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("unsupported sqlite driver: %s", driver)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps per-connection pragmas in force.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		dbPath: dbPath,
		driver: driver,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logging.Store("Opened scenario store at %s (driver=%s)", dbPath, driver)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Driver returns the database/sql driver in use.
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) initSchema() error {
	schema := `
	-- One row per parsed engine output
	CREATE TABLE IF NOT EXISTS scenario_sets (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		params_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scenario_sets_created ON scenario_sets(created_at);

	-- One row per weight combination
	CREATE TABLE IF NOT EXISTS scenarios (
		set_id TEXT NOT NULL,
		scenario_key TEXT NOT NULL,
		weights_json TEXT NOT NULL,
		skipped_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (set_id, scenario_key),
		FOREIGN KEY (set_id) REFERENCES scenario_sets(id) ON DELETE CASCADE
	);

	-- Included projects in rank order
	CREATE TABLE IF NOT EXISTS ranked_projects (
		set_id TEXT NOT NULL,
		scenario_key TEXT NOT NULL,
		position INTEGER NOT NULL,
		project_id INTEGER NOT NULL,
		rank INTEGER NOT NULL,
		total_score REAL NOT NULL,
		weighted_scores_json TEXT NOT NULL,
		cumulative_area REAL NOT NULL,
		cumulative_cost REAL NOT NULL,
		PRIMARY KEY (set_id, scenario_key, position),
		FOREIGN KEY (set_id, scenario_key) REFERENCES scenarios(set_id, scenario_key) ON DELETE CASCADE
	);

	-- Inbox processing history
	CREATE TABLE IF NOT EXISTS ingest_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		set_id TEXT,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ingest_path ON ingest_log(path);

	-- Schema version bookkeeping
	CREATE TABLE IF NOT EXISTS schema_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}
