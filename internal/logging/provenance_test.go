package logging

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE event_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT,
		action      TEXT NOT NULL,
		detail_json TEXT,
		outcome     TEXT NOT NULL,
		reason      TEXT,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-event-tests
func TestLogEvent_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := EventEntry{
		RunID:      "r1",
		Action:     "sweep",
		DetailJSON: `{"items":10}`,
		Outcome:    "ok",
		Reason:     "all items evaluated",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogEvent(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM event_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var runID, action string
	db.QueryRow("SELECT run_id, action FROM event_log").Scan(&runID, &action)
	if runID != "r1" {
		t.Errorf("expected run_id 'r1', got %q", runID)
	}
	if action != "sweep" {
		t.Errorf("expected action 'sweep', got %q", action)
	}
}

func TestLogEvent_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := EventEntry{
		Action:  "serve",
		Outcome: "ok",
	}

	before := time.Now().UTC()
	err := LogEvent(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM event_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogEvent_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := EventEntry{
		RunID:      "",
		Action:     "import",
		DetailJSON: "",
		Outcome:    "failed",
		Reason:     "",
		CreatedAt:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	err := LogEvent(db, entry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var runID, detail, reason sql.NullString
	db.QueryRow("SELECT run_id, detail_json, reason FROM event_log").Scan(&runID, &detail, &reason)
	if runID.Valid {
		t.Error("expected NULL run_id for empty string")
	}
	if detail.Valid {
		t.Error("expected NULL detail_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogEvent_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	entry := EventEntry{
		Action:  "evaluate",
		Outcome: "ok",
	}

	err := LogEvent(db, entry)
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestLogDetail_MarshalsSweepRecord(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	best := -3.5
	rec := SweepRecord{Items: 4, Failed: 1, Workers: 2, Isolated: true, BestLnLike: &best, BestTheta: []float64{0.5}}
	if err := LogDetail(db, EventEntry{RunID: "r2", Action: "sweep", Outcome: "partial"}, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var detail string
	db.QueryRow("SELECT detail_json FROM event_log").Scan(&detail)
	var got SweepRecord
	if err := json.Unmarshal([]byte(detail), &got); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if got.Failed != 1 || got.BestLnLike == nil || *got.BestLnLike != -3.5 {
		t.Errorf("unexpected detail %+v", got)
	}
}

// #endregion log-event-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level enabled when verbose")
	}

	logger, err = NewLogger(false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level disabled by default")
	}
}
