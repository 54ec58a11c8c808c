package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/afford"
	"github.com/sells-group/campus-cli/internal/pipeline"
)

var affordCmd = &cobra.Command{
	Use:   "afford",
	Short: "Filter a cost output file to rows within a budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("afford"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		budgetFlag, _ := cmd.Flags().GetString("budget")
		budgetFile, _ := cmd.Flags().GetString("budget-file")
		outPath, _ := cmd.Flags().GetString("output")

		budget, err := resolveBudget(budgetFlag, budgetFile)
		if err != nil {
			return err
		}

		rows, dropped, err := afford.LoadRows(input)
		if err != nil {
			return eris.Wrap(err, "afford: load cost rows")
		}
		if dropped > 0 {
			zap.L().Warn("afford: dropped rows without a numeric value", zap.Int("dropped", dropped))
		}

		kept := afford.Filter(rows, budget)
		if err := afford.Write(outPath, kept); err != nil {
			return eris.Wrap(err, "afford: write output")
		}

		renderAffordable(cmd.OutOrStdout(), kept)
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d rows within %s written to %s\n",
			len(kept), len(rows), pipeline.FormatUSD(budget), outPath)
		return nil
	},
}

func init() {
	f := affordCmd.Flags()
	f.String("input", "costs_output.csv", "cost output file produced by the costs task")
	f.String("budget", "", "budget in dollars, e.g. 25000 or $25,000")
	f.String("budget-file", "budget.csv", "file whose first line holds the budget (used when --budget is empty)")
	f.String("output", "affordable_universities.csv", "filtered output CSV")
	rootCmd.AddCommand(affordCmd)
}

// resolveBudget prefers the flag value over the budget file.
func resolveBudget(flag, file string) (float64, error) {
	if flag != "" {
		v, ok := pipeline.ParseAmount(flag)
		if !ok {
			return 0, eris.Errorf("afford: invalid budget %q", flag)
		}
		return v, nil
	}
	v, err := afford.ReadBudget(file)
	if err != nil {
		return 0, eris.Wrap(err, "afford: read budget")
	}
	return v, nil
}

func renderAffordable(w io.Writer, rows []afford.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No rows within budget.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"University", "Label", "Amount", "Year"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.University, r.Label, pipeline.FormatUSD(r.Amount), r.Year})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
