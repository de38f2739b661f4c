package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-event
// LogEvent writes an entry to the event_log table.
func LogEvent(db *sql.DB, entry EventEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO event_log (run_id, action, detail_json, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(entry.RunID),
		entry.Action,
		nullIfEmpty(entry.DetailJSON),
		entry.Outcome,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// LogDetail marshals detail into DetailJSON and writes the entry.
func LogDetail(db *sql.DB, entry EventEntry, detail any) error {
	b, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}
	entry.DetailJSON = string(b)
	return LogEvent(db, entry)
}
// #endregion log-event

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
