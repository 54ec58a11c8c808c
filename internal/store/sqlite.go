package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/campus-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	task          TEXT NOT NULL,
	institution   TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	row_count     INTEGER NOT NULL DEFAULT 0,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_attempts (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	number        INTEGER NOT NULL,
	stage         TEXT NOT NULL,
	fault         TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	matched_name  TEXT NOT NULL DEFAULT '',
	match_score   REAL NOT NULL DEFAULT 0,
	strategy      TEXT NOT NULL DEFAULT '',
	policy        TEXT NOT NULL DEFAULT '',
	records       INTEGER NOT NULL DEFAULT 0,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, number)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_task_institution ON runs(task, institution);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, taskName, institution string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, task, institution, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, taskName, institution, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:          id,
		Task:        taskName,
		Institution: institution,
		Status:      model.RunStatusRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, outcome model.RunOutcome) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, row_count = ?, attempt_count = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(outcome.Status), outcome.Rows, outcome.Attempts, outcome.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, task, institution, status, row_count, attempt_count, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Task != "" {
		query += ` AND task = ?`
		args = append(args, filter.Task)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Institution != "" {
		query += ` AND institution = ?`
		args = append(args, filter.Institution)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) FinishedInstitutions(ctx context.Context, taskName string) (map[string]bool, error) {
	statuses := finishedStatuses()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := []any{taskName}
	for _, st := range statuses {
		args = append(args, st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT institution FROM runs WHERE task = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: finished institutions")
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan institution")
		}
		done[name] = true
	}
	return done, eris.Wrap(rows.Err(), "sqlite: finished institutions iterate")
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, runID string, a model.Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_attempts (run_id, number, stage, fault, error, matched_name, match_score, strategy, policy,
			records, input_tokens, output_tokens, cost_usd, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Number, a.Stage, a.Fault, a.Error, a.MatchedName, a.MatchScore, a.Strategy, a.Policy,
		a.Records, a.InputTokens, a.OutputTokens, a.CostUSD, a.DurationMs,
	)
	return eris.Wrapf(err, "sqlite: insert attempt for run %s", runID)
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, runID string) ([]model.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, stage, fault, error, matched_name, match_score, strategy, policy,
			records, input_tokens, output_tokens, cost_usd, duration_ms
		 FROM run_attempts WHERE run_id = ? ORDER BY number`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list attempts")
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.Number, &a.Stage, &a.Fault, &a.Error, &a.MatchedName, &a.MatchScore, &a.Strategy,
			&a.Policy, &a.Records, &a.InputTokens, &a.OutputTokens, &a.CostUSD, &a.DurationMs); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list attempts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Task, &r.Institution, &r.Status, &r.Rows, &r.Attempts, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrap(ErrNotFound, "run")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}
