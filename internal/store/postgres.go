package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	task          TEXT NOT NULL,
	institution   TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	row_count     INTEGER NOT NULL DEFAULT 0,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_attempts (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	number        INTEGER NOT NULL,
	stage         TEXT NOT NULL,
	fault         TEXT NOT NULL DEFAULT '',
	error         TEXT NOT NULL DEFAULT '',
	matched_name  TEXT NOT NULL DEFAULT '',
	match_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	strategy      TEXT NOT NULL DEFAULT '',
	policy        TEXT NOT NULL DEFAULT '',
	records       INTEGER NOT NULL DEFAULT 0,
	input_tokens  BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, number)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_task_institution ON runs(task, institution);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, taskName, institution string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, task, institution, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, taskName, institution, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, outcome model.RunOutcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, row_count = $2, attempt_count = $3, error = $4, updated_at = $5 WHERE id = $6`,
		string(outcome.Status), outcome.Rows, outcome.Attempts, outcome.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Task, &r.Institution, &r.Status, &r.Rows, &r.Attempts, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Task != "" {
		query += fmt.Sprintf(` AND task = $%d`, argIdx)
		args = append(args, filter.Task)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Institution != "" {
		query += fmt.Sprintf(` AND institution = $%d`, argIdx)
		args = append(args, filter.Institution)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Task, &r.Institution, &r.Status, &r.Rows, &r.Attempts, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) FinishedInstitutions(ctx context.Context, taskName string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT institution FROM runs WHERE task = $1 AND status = ANY($2)`,
		taskName, finishedStatuses(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: finished institutions")
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan institution")
		}
		done[name] = true
	}
	return done, eris.Wrap(rows.Err(), "postgres: finished institutions iterate")
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, runID string, a model.Attempt) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_attempts (run_id, number, stage, fault, error, matched_name, match_score, strategy, policy,
			records, input_tokens, output_tokens, cost_usd, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		runID, a.Number, a.Stage, a.Fault, a.Error, a.MatchedName, a.MatchScore, a.Strategy, a.Policy,
		a.Records, a.InputTokens, a.OutputTokens, a.CostUSD, a.DurationMs,
	)
	return eris.Wrapf(err, "postgres: insert attempt for run %s", runID)
}

func (s *PostgresStore) ListAttempts(ctx context.Context, runID string) ([]model.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT number, stage, fault, error, matched_name, match_score, strategy, policy,
			records, input_tokens, output_tokens, cost_usd, duration_ms
		 FROM run_attempts WHERE run_id = $1 ORDER BY number`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list attempts")
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.Number, &a.Stage, &a.Fault, &a.Error, &a.MatchedName, &a.MatchScore, &a.Strategy,
			&a.Policy, &a.Records, &a.InputTokens, &a.OutputTokens, &a.CostUSD, &a.DurationMs); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list attempts iterate")
}
