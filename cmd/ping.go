package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/campus-cli/pkg/llm"
)

const pingPrompt = "What is 2 + 2?"

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the configured model endpoint answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("ping"); err != nil {
			return err
		}

		client, err := newLLMClient(cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		resp, err := ping(cmd.Context(), client, cfg.LLM.Model)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s answered %q in %s (%d in / %d out tokens)\n",
			client.Name(), resp.Model, strings.TrimSpace(resp.Text),
			time.Since(start).Round(time.Millisecond), resp.Usage.InputTokens, resp.Usage.OutputTokens)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func ping(ctx context.Context, client llm.Client, model string) (*llm.Response, error) {
	resp, err := client.Complete(ctx, llm.Request{
		Model:     model,
		Messages:  []llm.Message{{Role: "user", Content: pingPrompt}},
		MaxTokens: 10,
	})
	if err != nil {
		return nil, eris.Wrap(err, "ping: complete")
	}
	return resp, nil
}
