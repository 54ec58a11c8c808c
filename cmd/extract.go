package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/monitoring"
	"github.com/sells-group/campus-cli/internal/output"
	"github.com/sells-group/campus-cli/internal/pipeline"
	"github.com/sells-group/campus-cli/internal/roster"
	"github.com/sells-group/campus-cli/internal/store"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run an extraction task over a roster of institutions",
	Long: "Reads institution names from the university column of a CSV or XLSX roster, runs the " +
		"selected task for each one in order, and appends the resulting rows to the output CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		taskName, _ := cmd.Flags().GetString("task")
		input, _ := cmd.Flags().GetString("input")
		outPath, _ := cmd.Flags().GetString("output")
		limit, _ := cmd.Flags().GetInt("limit")
		resume, _ := cmd.Flags().GetBool("resume")

		env, err := initPipeline(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		desc, err := env.Tasks.Lookup(taskName)
		if err != nil {
			return err
		}

		institutions, err := roster.Load(input)
		if err != nil {
			return eris.Wrap(err, "extract: load roster")
		}
		institutions = limitInstitutions(institutions, limit)

		var skip map[string]bool
		if resume {
			skip, err = finishedInstitutions(ctx, env.Store, desc.Name)
			if err != nil {
				return err
			}
		}

		if outPath == "" {
			outPath = desc.Name + "_output.csv"
		}
		sink, err := output.OpenCSV(outPath, desc.Columns())
		if err != nil {
			return eris.Wrap(err, "extract: open output")
		}
		defer sink.Close() //nolint:errcheck

		driver := pipeline.NewDriver(env.Runner, sink, pipeline.BatchConfig{
			Delay: cfg.Batch.Delay,
			Skip:  skip,
		})

		sum, runErr := driver.Run(ctx, desc, institutions)
		printSummary(cmd.OutOrStdout(), desc.Name, outPath, sum)

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerter.SendAlerts(context.WithoutCancel(ctx), alerter.Evaluate(desc.Name, sum))

		if err := sink.Close(); err != nil {
			return eris.Wrap(err, "extract: close output")
		}
		return runErr
	},
}

func init() {
	f := extractCmd.Flags()
	f.String("task", "programs", "task to run (see `campus-cli tasks`)")
	f.String("input", "universities.csv", "roster file (.csv or .xlsx) with a university column")
	f.String("output", "", "output CSV (default <task>_output.csv)")
	f.Int("limit", 0, "process at most this many institutions (0 = all)")
	f.Bool("resume", false, "skip institutions the ledger already finished for this task")
	rootCmd.AddCommand(extractCmd)
}

func limitInstitutions(in []model.Institution, limit int) []model.Institution {
	if limit > 0 && limit < len(in) {
		return in[:limit]
	}
	return in
}

func finishedInstitutions(ctx context.Context, st store.Store, taskName string) (map[string]bool, error) {
	if st == nil {
		zap.L().Warn("extract: --resume ignored, run ledger disabled")
		return nil, nil
	}
	done, err := st.FinishedInstitutions(ctx, taskName)
	if err != nil {
		return nil, eris.Wrap(err, "extract: load finished institutions")
	}
	return done, nil
}

func printSummary(w io.Writer, taskName, outPath string, sum pipeline.BatchSummary) {
	fmt.Fprintf(w, "Task %s finished in %s: %d institutions, %d skipped\n",
		taskName, sum.Duration.Round(time.Millisecond), sum.Institutions, sum.Skipped)
	fmt.Fprintf(w, "  complete=%d no_data=%d not_found=%d failed=%d\n",
		sum.Complete, sum.NoData, sum.NotFound, sum.Failed)
	fmt.Fprintf(w, "  rows=%d tokens=%d/%d cost=$%.4f\n",
		sum.Rows, sum.InputTokens, sum.OutputTokens, sum.CostUSD)
	fmt.Fprintf(w, "  output: %s\n", outPath)
}
