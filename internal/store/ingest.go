package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Ingest statuses recorded by the inbox watcher.
const (
	IngestSuccess = "success"
	IngestFailed  = "failed"
)

// IngestRecord is one processed inbox file.
type IngestRecord struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SetID       string    `json:"set_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RecordIngest appends an entry to the ingest log.
func (s *Store) RecordIngest(rec IngestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_log (path, status, error, set_id, processed_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Path, rec.Status, nullString(rec.Error), nullString(rec.SetID), rec.ProcessedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record ingest of %s: %w", rec.Path, err)
	}
	return nil
}

// ListIngests returns the most recent ingest entries, newest first.
// A non-positive limit returns all of them.
func (s *Store) ListIngests(limit int) ([]IngestRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, path, status, error, set_id, processed_at FROM ingest_log ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingests: %w", err)
	}
	defer rows.Close()

	var out []IngestRecord
	for rows.Next() {
		var (
			rec         IngestRecord
			errText     sql.NullString
			setID       sql.NullString
			processedMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Status, &errText, &setID, &processedMs); err != nil {
			return nil, err
		}
		rec.Error = errText.String
		rec.SetID = setID.String
		rec.ProcessedAt = time.UnixMilli(processedMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
