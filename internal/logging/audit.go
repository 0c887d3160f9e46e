package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of pipeline event in the audit trail.
type AuditEventType string

const (
	AuditParseStart    AuditEventType = "parse_start"
	AuditParseComplete AuditEventType = "parse_complete"
	AuditParseError    AuditEventType = "parse_error"

	AuditStoreSave   AuditEventType = "store_save"
	AuditStoreDelete AuditEventType = "store_delete"

	AuditInboxFile AuditEventType = "inbox_file"
)

// AuditEvent is one JSON line in the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	RunID      string                 `json:"run,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit log. No-op unless debug mode is on.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(LogsDir(), fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit appends an event to the audit log if it is open.
func Audit(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// AuditParse records the outcome of one pipeline run.
func AuditParse(target string, scenarios int, elapsed time.Duration, err error) {
	event := AuditEvent{
		EventType:  AuditParseComplete,
		Target:     target,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
		Fields:     map[string]interface{}{"scenarios": scenarios},
	}
	if err != nil {
		event.EventType = AuditParseError
		event.Error = err.Error()
	}
	Audit(event)
}
