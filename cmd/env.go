package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/browser"
	"github.com/sells-group/campus-cli/internal/config"
	"github.com/sells-group/campus-cli/internal/cost"
	"github.com/sells-group/campus-cli/internal/pipeline"
	"github.com/sells-group/campus-cli/internal/store"
	"github.com/sells-group/campus-cli/internal/task"
	"github.com/sells-group/campus-cli/pkg/llm"
)

// pipelineEnv holds everything the extract and serve commands need.
type pipelineEnv struct {
	Store    store.Store // may be nil
	Tasks    *task.Registry
	Runner   *pipeline.Runner
	LLM      llm.Client
	Launcher browser.Launcher
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the ledger, and builds the
// runner. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	tasks, err := initTasks(cfg)
	if err != nil {
		return nil, err
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	launcher := browser.NewChromeLauncher(browserOptions(cfg))
	extractor := pipeline.NewExtractor(client, extractorConfig(cfg), newCalculator(cfg))

	runner := pipeline.NewRunner(launcher, extractor, st, runnerConfig(cfg))

	return &pipelineEnv{
		Store:    st,
		Tasks:    tasks,
		Runner:   runner,
		LLM:      client,
		Launcher: launcher,
	}, nil
}

// initStore opens and migrates the configured ledger. Driver "none" yields nil.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if st == nil {
		zap.L().Debug("run ledger disabled")
	}
	return st, nil
}

// initTasks returns the built-in tasks merged with the optional tasks file.
func initTasks(c *config.Config) (*task.Registry, error) {
	reg := task.NewRegistry()
	if c.Pipeline.TasksFile == "" {
		return reg, nil
	}
	if err := reg.LoadFile(c.Pipeline.TasksFile); err != nil {
		return nil, eris.Wrap(err, "load tasks file")
	}
	return reg, nil
}

func newLLMClient(c *config.Config) (llm.Client, error) {
	client, err := llm.New(llm.Config{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.Key,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  c.LLM.Timeout,
	})
	return client, eris.Wrap(err, "init llm client")
}

func newCalculator(c *config.Config) *cost.Calculator {
	overrides := make(map[string]cost.ModelRate, len(c.Pricing.Models))
	for name, p := range c.Pricing.Models {
		overrides[name] = cost.ModelRate{Input: p.Input, Output: p.Output}
	}
	return cost.NewCalculator(cost.DefaultRates().Merge(overrides))
}

func browserOptions(c *config.Config) browser.Options {
	return browser.Options{
		BaseURL:         c.Site.BaseURL,
		NotFoundMarker:  c.Site.NotFoundMarker,
		ResultSelector:  c.Site.ResultSelector,
		Headless:        c.Browser.Headless,
		ExecPath:        c.Browser.ExecPath,
		WindowWidth:     c.Browser.WindowWidth,
		WindowHeight:    c.Browser.WindowHeight,
		NavigateTimeout: c.Browser.NavigateTimeout,
		ResultTimeout:   c.Browser.ResultTimeout,
		TabTimeout:      c.Browser.TabTimeout,
		SearchSettle:    c.Browser.SearchSettle,
		RenderSettle:    c.Browser.RenderSettle,
		ScrollPause:     c.Browser.ScrollPause,
	}
}

func extractorConfig(c *config.Config) pipeline.ExtractorConfig {
	return pipeline.ExtractorConfig{
		Model:             c.LLM.Model,
		MaxTokens:         int64(c.LLM.MaxTokens),
		Timeout:           c.LLM.Timeout,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		CircuitThreshold:  c.LLM.CircuitThreshold,
		CircuitReset:      c.LLM.CircuitReset,
	}
}

func runnerConfig(c *config.Config) pipeline.RunnerConfig {
	return pipeline.RunnerConfig{
		ChunkWidth:    c.Pipeline.ChunkWidth,
		RetryBackoff:  c.Pipeline.RetryBackoff,
		DefaultYear:   c.Pipeline.DefaultYear,
		MinMatchScore: c.Pipeline.MinMatchScore,
	}
}
