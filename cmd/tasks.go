package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/campus-cli/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the extraction tasks available to extract and serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := initTasks(cfg)
		if err != nil {
			return err
		}
		renderTasks(cmd.OutOrStdout(), reg.All())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func renderTasks(w io.Writer, descs []task.Descriptor) {
	if len(descs) == 0 {
		fmt.Fprintln(w, "No tasks registered.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Name", "Kind", "Tab", "Attempts", "Columns"})
	for _, d := range descs {
		t.AppendRow(table.Row{d.Name, string(d.Kind), d.Tab.LinkText, d.MaxAttempts, strings.Join(d.Columns(), ",")})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
