package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"deme/internal/model"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sqlx.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sqlx.Open("sqlite", s.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("sqlite store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			params TEXT NOT NULL,
			trials INTEGER NOT NULL,
			workers INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			stats TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trials (
			run_id TEXT NOT NULL,
			trial INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			generations INTEGER NOT NULL,
			clamp_events INTEGER NOT NULL,
			PRIMARY KEY (run_id, trial)
		);
		CREATE INDEX IF NOT EXISTS idx_trials_run ON trials(run_id);
	`)
	return err
}

type runRow struct {
	RunID        string `db:"run_id"`
	CreatedAtUTC string `db:"created_at_utc"`
	Params       string `db:"params"`
	Trials       int    `db:"trials"`
	Workers      int    `db:"workers"`
	Seed         int64  `db:"seed"`
	Stats        string `db:"stats"`
}

func (r runRow) summary() (model.RunSummary, error) {
	summary := model.RunSummary{
		RunID:        r.RunID,
		CreatedAtUTC: r.CreatedAtUTC,
		Trials:       r.Trials,
		Workers:      r.Workers,
		Seed:         r.Seed,
	}
	if err := json.Unmarshal([]byte(r.Params), &summary.Params); err != nil {
		return model.RunSummary{}, fmt.Errorf("decode params for run %s: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(r.Stats), &summary.Stats); err != nil {
		return model.RunSummary{}, fmt.Errorf("decode stats for run %s: %w", r.RunID, err)
	}
	return summary, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, summary model.RunSummary) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	params, err := json.Marshal(summary.Params)
	if err != nil {
		return err
	}
	stats, err := json.Marshal(summary.Stats)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at_utc, params, trials, workers, seed, stats)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			params = excluded.params,
			trials = excluded.trials,
			workers = excluded.workers,
			seed = excluded.seed,
			stats = excluded.stats
	`, summary.RunID, summary.CreatedAtUTC, string(params), summary.Trials, summary.Workers, summary.Seed, string(stats))
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (model.RunSummary, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunSummary{}, false, err
	}

	var row runRow
	err = db.GetContext(ctx, &row, `SELECT * FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunSummary{}, false, nil
		}
		return model.RunSummary{}, false, err
	}

	summary, err := row.summary()
	if err != nil {
		return model.RunSummary{}, false, err
	}
	return summary, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var rows []runRow
	err = db.SelectContext(ctx, &rows, `SELECT * FROM runs ORDER BY created_at_utc DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}

	runs := make([]model.RunSummary, 0, len(rows))
	for _, row := range rows {
		summary, err := row.summary()
		if err != nil {
			return nil, err
		}
		runs = append(runs, summary)
	}
	return runs, nil
}

func (s *SQLiteStore) SaveTrials(ctx context.Context, runID string, trials []model.TrialResult) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trials WHERE run_id = ?`, runID); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO trials (run_id, trial, seed, outcome, generations, clamp_events)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, trial := range trials {
		if _, err := stmt.ExecContext(ctx, runID, trial.Trial, trial.Seed, string(trial.Outcome), trial.Generations, trial.ClampEvents); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetTrials(ctx context.Context, runID string) ([]model.TrialResult, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	type trialRow struct {
		Trial       int    `db:"trial"`
		Seed        int64  `db:"seed"`
		Outcome     string `db:"outcome"`
		Generations int    `db:"generations"`
		ClampEvents int    `db:"clamp_events"`
	}
	var rows []trialRow
	err = db.SelectContext(ctx, &rows, `
		SELECT trial, seed, outcome, generations, clamp_events
		FROM trials WHERE run_id = ? ORDER BY trial
	`, runID)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	trials := make([]model.TrialResult, 0, len(rows))
	for _, row := range rows {
		trials = append(trials, model.TrialResult{
			Trial:       row.Trial,
			Seed:        row.Seed,
			Outcome:     model.Outcome(row.Outcome),
			Generations: row.Generations,
			ClampEvents: row.ClampEvents,
		})
	}
	return trials, true, nil
}
