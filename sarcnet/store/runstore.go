package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/tapon22bce/sarcnet/sarcnet/metrics"
)

// Artifact kinds persisted per run.
const (
	ArtifactWeights    = "weights"    // stage-1 encoder+fusion weights
	ArtifactClassifier = "classifier" // stage-2 secondary classifier
)

var ErrNoSuchRun = errors.New("run not found")

// RunStore records training runs, their evaluation metrics and their model
// artifacts in a libsql database. Artifacts are written once per run after
// each stage and read once before serving; nothing mutates them in between.
type RunStore struct {
	db *sql.DB
}

// Open connects to the run database and ensures the schema exists. dsn may be
// a bare path or a full file:/libsql: URL.
func Open(dsn string) (*RunStore, error) {
	if !strings.Contains(dsn, ":") {
		dsn = "file:" + dsn
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	s := &RunStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// init sets up the run-store tables.
func (s *RunStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY UNIQUE,
		fingerprint TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS run_metrics (
		run_id TEXT NOT NULL REFERENCES runs(id),
		accuracy REAL, precision REAL, recall REAL, f1 REAL,
		tn INTEGER, fp INTEGER, fn INTEGER, tp INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("failed to create run_metrics table: %w", err)
	}
	_, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL REFERENCES runs(id),
		kind TEXT NOT NULL,
		payload BLOB NOT NULL,
		written_at TEXT NOT NULL,
		PRIMARY KEY (run_id, kind)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create artifacts table: %w", err)
	}
	return nil
}

// CreateRun registers a new training run under the given pipeline fingerprint.
func (s *RunStore) CreateRun(fingerprint string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.db.Exec(`INSERT INTO runs (id, fingerprint, state) VALUES (?, ?, ?)`,
		id.String(), fingerprint, "running")
	if err != nil {
		return uuid.Nil, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// SetRunState updates the run's terminal state ("complete", "diverged", ...).
func (s *RunStore) SetRunState(id uuid.UUID, state string) error {
	res, err := s.db.Exec(`UPDATE runs SET state = ? WHERE id = ?`, state, id.String())
	if err != nil {
		return fmt.Errorf("set run state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoSuchRun
	}
	return nil
}

// SaveArtifact stores one gob-encoded artifact for a run.
func (s *RunStore) SaveArtifact(id uuid.UUID, kind string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO artifacts (run_id, kind, payload, written_at) VALUES (?, ?, ?, ?)`,
		id.String(), kind, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save %s artifact: %w", kind, err)
	}
	return nil
}

// LoadArtifact reads one artifact back.
func (s *RunStore) LoadArtifact(id uuid.UUID, kind string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM artifacts WHERE run_id = ? AND kind = ?`,
		id.String(), kind).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNoSuchRun
	}
	if err != nil {
		return nil, fmt.Errorf("load %s artifact: %w", kind, err)
	}
	return payload, nil
}

// LatestRun returns the most recent run id for a fingerprint, for serving.
func (s *RunStore) LatestRun(fingerprint string) (uuid.UUID, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT id FROM runs WHERE fingerprint = ? AND state = 'complete'
		 ORDER BY created_at DESC LIMIT 1`, fingerprint).Scan(&raw)
	if err == sql.ErrNoRows {
		return uuid.Nil, ErrNoSuchRun
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("latest run: %w", err)
	}
	return uuid.Parse(raw)
}

// SaveMetrics records the held-out evaluation for a run.
func (s *RunStore) SaveMetrics(id uuid.UUID, r metrics.Report) error {
	_, err := s.db.Exec(
		`INSERT INTO run_metrics (run_id, accuracy, precision, recall, f1, tn, fp, fn, tp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), r.Accuracy, r.Precision, r.Recall, r.F1,
		r.Confusion[0][0], r.Confusion[0][1], r.Confusion[1][0], r.Confusion[1][1])
	if err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// LoadMetrics reads a run's evaluation back.
func (s *RunStore) LoadMetrics(id uuid.UUID) (metrics.Report, error) {
	var r metrics.Report
	err := s.db.QueryRow(
		`SELECT accuracy, precision, recall, f1, tn, fp, fn, tp FROM run_metrics WHERE run_id = ?`,
		id.String()).Scan(&r.Accuracy, &r.Precision, &r.Recall, &r.F1,
		&r.Confusion[0][0], &r.Confusion[0][1], &r.Confusion[1][0], &r.Confusion[1][1])
	if err == sql.ErrNoRows {
		return metrics.Report{}, ErrNoSuchRun
	}
	if err != nil {
		return metrics.Report{}, fmt.Errorf("load metrics: %w", err)
	}
	return r, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error { return s.db.Close() }
