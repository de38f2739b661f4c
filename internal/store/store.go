package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/xuvcal/internal/fit"
	"github.com/danielpatrickdp/xuvcal/internal/observation"
)

// ErrNoEvaluations is returned by BestEvaluation for a run with no finite likelihoods.
var ErrNoEvaluations = errors.New("store: no finite evaluations")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	star          TEXT NOT NULL,
	combination   TEXT NOT NULL,
	config_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	eval_id       TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	theta         BLOB NOT NULL,
	terms_json    TEXT,
	lnlike        REAL,
	finals_json   TEXT,
	passed        INTEGER NOT NULL,
	reason        TEXT,
	error         TEXT,
	source        TEXT NOT NULL,
	elapsed_ms    INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS evaluations_run ON evaluations(run_id, lnlike);

CREATE TABLE IF NOT EXISTS samples (
	run_id        TEXT NOT NULL,
	sampler       TEXT NOT NULL,
	idx           INTEGER NOT NULL,
	theta         BLOB NOT NULL,
	PRIMARY KEY (run_id, sampler, idx),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS event_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT,
	action        TEXT NOT NULL,
	detail_json   TEXT,
	outcome       TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct
// Store persists runs, evaluations and posterior samples in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations. Pragmas go in the
// DSN so every pooled connection gets them.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

const pragmas = "_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"

func dsn(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath + "&" + pragmas
	}
	return dbPath + "?" + pragmas
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region runs
// CreateRun records a new calibration run and returns it with its ID.
func (s *Store) CreateRun(star, combination string, config any) (Run, error) {
	cfgJSON, err := json.Marshal(config)
	if err != nil {
		return Run{}, fmt.Errorf("marshal run config: %w", err)
	}
	run := Run{
		RunID:       uuid.New().String(),
		Star:        star,
		Combination: combination,
		ConfigJSON:  string(cfgJSON),
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, star, combination, config_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Star, run.Combination, run.ConfigJSON, run.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (Run, error) {
	var run Run
	var createdStr string
	err := s.db.QueryRow(
		`SELECT run_id, star, combination, config_json, created_at FROM runs WHERE run_id = ?`, id,
	).Scan(&run.RunID, &run.Star, &run.Combination, &run.ConfigJSON, &createdStr)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return run, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, star, combination, config_json, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdStr string
		if err := rows.Scan(&run.RunID, &run.Star, &run.Combination, &run.ConfigJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
// #endregion runs

// #region evaluations
// RecordEvaluation inserts ev, assigning an ID and timestamp when unset.
// Non-finite likelihoods are stored as NULL.
func (s *Store) RecordEvaluation(ev Evaluation) (Evaluation, error) {
	if ev.EvalID == "" {
		ev.EvalID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	termsJSON, err := json.Marshal(ev.Terms)
	if err != nil {
		return Evaluation{}, fmt.Errorf("marshal terms: %w", err)
	}
	finalsJSON, err := json.Marshal(ev.Finals)
	if err != nil {
		return Evaluation{}, fmt.Errorf("marshal finals: %w", err)
	}

	var lnlike any
	if !math.IsInf(ev.LnLike, 0) && !math.IsNaN(ev.LnLike) {
		lnlike = ev.LnLike
	}
	_, err = s.db.Exec(
		`INSERT INTO evaluations (eval_id, run_id, theta, terms_json, lnlike, finals_json, passed, reason, error, source, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EvalID,
		ev.RunID,
		encodeVector(ev.Theta),
		string(termsJSON),
		lnlike,
		string(finalsJSON),
		ev.Passed,
		nullIfEmpty(ev.Reason),
		nullIfEmpty(ev.Error),
		ev.Source,
		ev.Elapsed.Milliseconds(),
		ev.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Evaluation{}, fmt.Errorf("insert evaluation: %w", err)
	}
	return ev, nil
}

const evaluationColumns = `eval_id, run_id, theta, terms_json, lnlike, finals_json, passed, reason, error, source, elapsed_ms, created_at`

// ListEvaluations returns a run's evaluations, most recent first.
func (s *Store) ListEvaluations(runID string, limit int) ([]Evaluation, error) {
	rows, err := s.db.Query(
		`SELECT `+evaluationColumns+` FROM evaluations WHERE run_id = ? ORDER BY created_at DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

// BestEvaluation returns the run's evaluation with the highest finite likelihood.
func (s *Store) BestEvaluation(runID string) (Evaluation, error) {
	row := s.db.QueryRow(
		`SELECT `+evaluationColumns+` FROM evaluations
		 WHERE run_id = ? AND lnlike IS NOT NULL ORDER BY lnlike DESC LIMIT 1`, runID,
	)
	ev, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Evaluation{}, fmt.Errorf("run %s: %w", runID, ErrNoEvaluations)
	}
	return ev, err
}

// CountEvaluations returns the total and failed evaluation counts for a run.
func (s *Store) CountEvaluations(runID string) (total, failed int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN error IS NOT NULL OR passed = 0 THEN 1 ELSE 0 END), 0)
		 FROM evaluations WHERE run_id = ?`, runID,
	).Scan(&total, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("count evaluations: %w", err)
	}
	return total, failed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (Evaluation, error) {
	var ev Evaluation
	var thetaBlob []byte
	var termsJSON, finalsJSON, reason, errText sql.NullString
	var lnlike sql.NullFloat64
	var elapsedMs int64
	var createdStr string

	err := row.Scan(&ev.EvalID, &ev.RunID, &thetaBlob, &termsJSON, &lnlike, &finalsJSON,
		&ev.Passed, &reason, &errText, &ev.Source, &elapsedMs, &createdStr)
	if err != nil {
		return Evaluation{}, fmt.Errorf("scan evaluation: %w", err)
	}
	ev.Theta = decodeVector(thetaBlob)
	ev.LnLike = math.Inf(-1)
	if lnlike.Valid {
		ev.LnLike = lnlike.Float64
	}
	if termsJSON.Valid {
		var terms []fit.Term
		if err := json.Unmarshal([]byte(termsJSON.String), &terms); err != nil {
			return Evaluation{}, fmt.Errorf("unmarshal terms: %w", err)
		}
		ev.Terms = terms
	}
	if finalsJSON.Valid {
		var finals map[observation.Kind]float64
		if err := json.Unmarshal([]byte(finalsJSON.String), &finals); err != nil {
			return Evaluation{}, fmt.Errorf("unmarshal finals: %w", err)
		}
		ev.Finals = finals
	}
	ev.Reason = reason.String
	ev.Error = errText.String
	ev.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return ev, nil
}
// #endregion evaluations

// #region samples
// ImportSamples replaces the run's samples for set.Sampler with set.Rows.
func (s *Store) ImportSamples(set SampleSet) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM samples WHERE run_id = ? AND sampler = ?`, set.RunID, set.Sampler); err != nil {
		return 0, fmt.Errorf("clear samples: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO samples (run_id, sampler, idx, theta) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range set.Rows {
		if _, err := stmt.Exec(set.RunID, set.Sampler, i, encodeVector(row)); err != nil {
			return 0, fmt.Errorf("insert sample %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(set.Rows), nil
}

// LoadSamples returns the run's samples for sampler in import order.
func (s *Store) LoadSamples(runID, sampler string) ([][]float64, error) {
	rows, err := s.db.Query(
		`SELECT theta FROM samples WHERE run_id = ? AND sampler = ? ORDER BY idx`, runID, sampler,
	)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	defer rows.Close()

	var out [][]float64
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, decodeVector(blob))
	}
	return out, rows.Err()
}
// #endregion samples

// #region vector-encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion vector-encoding
