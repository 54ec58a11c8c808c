// Package store persists the run ledger: one run per institution processed
// by a task, and one attempt row per pipeline pass.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-cli/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Task        string          `json:"task,omitempty"`
	Status      model.RunStatus `json:"status,omitempty"`
	Institution string          `json:"institution,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, taskName, institution string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, outcome model.RunOutcome) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	// FinishedInstitutions returns institutions with a finished run for the
	// task, used to resume a batch.
	FinishedInstitutions(ctx context.Context, taskName string) (map[string]bool, error)

	// Attempts
	RecordAttempt(ctx context.Context, runID string, a model.Attempt) error
	ListAttempts(ctx context.Context, runID string) ([]model.Attempt, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a migrated store for the driver. DriverNone returns nil.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverSQLite:
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

func finishedStatuses() []string {
	return []string{
		string(model.RunStatusComplete),
		string(model.RunStatusNoData),
		string(model.RunStatusNotFound),
	}
}
