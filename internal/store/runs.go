package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// RunStore persists run history in sqlite.
type RunStore struct {
	DB *sql.DB
}

func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases consistent.
	db.SetMaxOpenConns(1)

	// Create tables if not exist
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT,
			status TEXT DEFAULT 'running',
			started_at TEXT,
			finished_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS scenario_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			scenario INTEGER,
			status TEXT,
			action_count INTEGER,
			rationale TEXT,
			error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT,
			scenario INTEGER,
			step INTEGER,
			kind TEXT,
			target TEXT,
			status TEXT,
			detail TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &RunStore{DB: db}, nil
}

func (s *RunStore) Close() error {
	return s.DB.Close()
}

func (s *RunStore) StartRun(runID, source string) error {
	query := `INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)`
	_, err := s.DB.Exec(query, runID, source, now())
	return err
}

func (s *RunStore) FinishRun(runID, status string) error {
	query := `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`
	res, err := s.DB.Exec(query, status, now(), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (s *RunStore) GetRun(runID string) (RunRecord, error) {
	query := `SELECT id, source, status, started_at, finished_at FROM runs WHERE id = ?`
	var (
		rec      RunRecord
		started  string
		finished sql.NullString
	)
	err := s.DB.QueryRow(query, runID).Scan(&rec.ID, &rec.Source, &rec.Status, &started, &finished)
	if err != nil {
		return RunRecord{}, err
	}
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: bad started_at: %w", runID, err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return RunRecord{}, fmt.Errorf("run %s: bad finished_at: %w", runID, err)
		}
		rec.FinishedAt = &t
	}
	return rec, nil
}

func (s *RunStore) RecordScenario(runID string, rec ScenarioRecord) error {
	query := `INSERT INTO scenario_results (run_id, scenario, status, action_count, rationale, error) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.DB.Exec(query, runID, rec.Scenario, rec.Status, rec.ActionCount, rec.Rationale, rec.Error)
	return err
}

func (s *RunStore) RecordAction(runID string, rec ActionRecord) error {
	query := `INSERT INTO actions (run_id, scenario, step, kind, target, status, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.DB.Exec(query, runID, rec.Scenario, rec.Step, rec.Kind, rec.Target, rec.Status, rec.Detail)
	return err
}

func (s *RunStore) ListScenarios(runID string) ([]ScenarioRecord, error) {
	query := `SELECT scenario, status, action_count, rationale, error FROM scenario_results WHERE run_id = ? ORDER BY id`
	rows, err := s.DB.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScenarioRecord
	for rows.Next() {
		var rec ScenarioRecord
		if err := rows.Scan(&rec.Scenario, &rec.Status, &rec.ActionCount, &rec.Rationale, &rec.Error); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RunStore) ListActions(runID string) ([]ActionRecord, error) {
	query := `SELECT scenario, step, kind, target, status, detail FROM actions WHERE run_id = ? ORDER BY id`
	rows, err := s.DB.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var rec ActionRecord
		if err := rows.Scan(&rec.Scenario, &rec.Step, &rec.Kind, &rec.Target, &rec.Status, &rec.Detail); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
