package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		taskName, _ := cmd.Flags().GetString("task")
		status, _ := cmd.Flags().GetString("status")
		institution, _ := cmd.Flags().GetString("institution")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Task:        taskName,
			Status:      model.RunStatus(status),
			Institution: institution,
			Limit:       limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs: list")
		}

		renderRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its attempts as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "runs: get %s", args[0])
		}
		attempts, err := st.ListAttempts(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs: list attempts")
		}

		return writeRunDetail(cmd.OutOrStdout(), run, attempts)
	},
}

func init() {
	f := runsListCmd.Flags()
	f.String("task", "", "filter by task name")
	f.String("status", "", "filter by status (running, complete, no_data, not_found, failed)")
	f.String("institution", "", "filter by institution name")
	f.Int("limit", 20, "maximum runs to show")

	runsCmd.AddCommand(runsListCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// openLedger opens the configured store, refusing when the ledger is disabled.
func openLedger(cmd *cobra.Command) (store.Store, error) {
	if err := cfg.Validate("runs"); err != nil {
		return nil, err
	}
	st, err := initStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("runs: run ledger is disabled (store.driver=none)")
	}
	return st, nil
}

type runDetail struct {
	*model.Run
	AttemptLog []model.Attempt `json:"attempt_log"`
}

func writeRunDetail(w io.Writer, run *model.Run, attempts []model.Attempt) error {
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(runDetail{Run: run, AttemptLog: attempts})
}

func renderRuns(w io.Writer, runs []model.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Task", "Institution", "Status", "Rows", "Attempts", "Updated"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID, r.Task, r.Institution, string(r.Status), r.Rows, r.Attempts,
			r.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
