// Package pipeline runs the per-institution extraction: navigate, locate the
// page section, prompt the model, parse, normalize, and retry on failure.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/browser"
	"github.com/sells-group/campus-cli/internal/fault"
	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/resilience"
	"github.com/sells-group/campus-cli/internal/task"
)

// Pipeline states. An attempt's Stage is the last state it entered.
const (
	StageStart         = "start"
	StageNavigate      = "navigate"
	StageLocateSection = "locate_section"
	StageExtract       = "extract"
	StageParse         = "parse"
	StageNormalize     = "normalize"
	StageDone          = "done"
)

// NotFoundError is the error column for institutions the site does not list.
const NotFoundError = "UNIVERSITY NOT FOUND"

// Extraction produces model output for prompt chunks.
type Extraction interface {
	Extract(ctx context.Context, desc task.Descriptor, institution string, chunks []model.PromptChunk) ExtractionOutcome
}

// Ledger persists runs and attempts. Failures are logged, never fatal.
type Ledger interface {
	CreateRun(ctx context.Context, taskName, institution string) (*model.Run, error)
	RecordAttempt(ctx context.Context, runID string, a model.Attempt) error
	CompleteRun(ctx context.Context, runID string, outcome model.RunOutcome) error
}

// RunnerConfig holds the knobs of one institution pass.
type RunnerConfig struct {
	ChunkWidth    int
	RetryBackoff  time.Duration
	DefaultYear   string
	MinMatchScore float64
}

// Runner executes the pipeline for one institution with bounded retries.
type Runner struct {
	launcher  browser.Launcher
	extractor Extraction
	ledger    Ledger
	cfg       RunnerConfig
}

// NewRunner creates a Runner. ledger may be nil.
func NewRunner(launcher browser.Launcher, extractor Extraction, ledger Ledger, cfg RunnerConfig) *Runner {
	if cfg.ChunkWidth < 1 {
		cfg.ChunkWidth = 3000
	}
	if cfg.DefaultYear == "" {
		cfg.DefaultYear = "2024–2025"
	}
	return &Runner{launcher: launcher, extractor: extractor, ledger: ledger, cfg: cfg}
}

// RunResult is everything one institution produced.
type RunResult struct {
	RunID    string
	Status   model.RunStatus
	Rows     []model.ResultRow
	Attempts []model.Attempt
}

// Run processes one institution and always returns at least one row.
func (r *Runner) Run(ctx context.Context, desc task.Descriptor, inst model.Institution) RunResult {
	log := zap.L().With(zap.String("task", desc.Name), zap.String("institution", inst.Name))
	log.Info("pipeline: starting institution")

	var res RunResult
	if r.ledger != nil {
		run, err := r.ledger.CreateRun(ctx, desc.Name, inst.Name)
		if err != nil {
			log.Warn("pipeline: failed to create run", zap.Error(err))
		} else {
			res.RunID = run.ID
		}
	}

	retry := resilience.Fixed(desc.MaxAttempts, r.cfg.RetryBackoff)
	retry.ShouldRetry = fault.Retryable
	retry.OnRetry = resilience.RetryLogger("pipeline", desc.Name, zap.String("institution", inst.Name))

	records, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]model.Record, error) {
		recs, att, err := r.attempt(ctx, desc, inst, len(res.Attempts)+1)
		res.Attempts = append(res.Attempts, att)
		r.recordAttempt(ctx, res.RunID, att)
		return recs, err
	})

	switch {
	case err == nil:
		res.Status = model.RunStatusComplete
		for _, rec := range records {
			res.Rows = append(res.Rows, model.ResultRow{
				University: inst.Name,
				Label:      rec.Label,
				Value:      rec.Value,
				Year:       rec.Year,
			})
		}
	case fault.Is(err, fault.NotFound):
		res.Status = model.RunStatusNotFound
		res.Rows = []model.ResultRow{{University: inst.Name, Error: NotFoundError}}
	case fault.Is(err, fault.NoValidData):
		res.Status = model.RunStatusNoData
		res.Rows = []model.ResultRow{{University: inst.Name, Label: NoValidDataLabel}}
	default:
		res.Status = model.RunStatusFailed
		res.Rows = []model.ResultRow{{University: inst.Name, Error: totalError(len(res.Attempts), err)}}
	}

	r.completeRun(ctx, res)
	log.Info("pipeline: institution finished",
		zap.String("status", string(res.Status)),
		zap.Int("rows", len(res.Rows)),
		zap.Int("attempts", len(res.Attempts)),
	)
	return res
}

func totalError(attempts int, err error) string {
	noun := "attempts"
	if attempts == 1 {
		noun = "attempt"
	}
	return fmt.Sprintf("TOTAL ERROR after %d %s: %s", attempts, noun, err.Error())
}

// attempt is one full pass with a fresh browser session.
func (r *Runner) attempt(ctx context.Context, desc task.Descriptor, inst model.Institution, n int) (records []model.Record, att model.Attempt, err error) {
	log := zap.L().With(zap.String("task", desc.Name), zap.String("institution", inst.Name), zap.Int("attempt", n))
	att = model.Attempt{Number: n, Stage: StageStart}
	start := time.Now()

	defer func() {
		att.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			err = fault.AtStage(err, att.Stage)
			att.Fault = fault.Label(err)
			att.Error = err.Error()
			log.Warn("pipeline: attempt failed", zap.String("stage", att.Stage), zap.String("fault", att.Fault), zap.Error(err))
		}
	}()

	att.Stage = StageNavigate
	sess, err := r.launcher.Launch(ctx)
	if err != nil {
		return nil, att, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("pipeline: failed to close browser session", zap.Error(cerr))
		}
	}()

	if err = sess.Search(ctx, inst.Name); err != nil {
		return nil, att, err
	}
	matched, err := sess.OpenFirstResult(ctx)
	if err != nil {
		return nil, att, err
	}
	att.MatchedName = matched
	att.MatchScore = MatchScore(inst.Name, matched)
	if att.MatchScore < r.cfg.MinMatchScore {
		log.Warn("pipeline: first result differs from query",
			zap.String("matched", matched),
			zap.Float64("score", att.MatchScore),
		)
	}
	if err = sess.ClickTab(ctx, browser.Tab{LinkText: desc.Tab.LinkText, Match: desc.Tab.Matches}); err != nil {
		return nil, att, err
	}

	att.Stage = StageLocateSection
	page, err := sess.PageHTML(ctx)
	if err != nil {
		return nil, att, err
	}
	section, err := LocateSection(page, desc.SectionMarkers)
	if err != nil {
		return nil, att, err
	}

	att.Stage = StageExtract
	chunks := BuildChunks(Chunk(section.Text, r.cfg.ChunkWidth))
	out := r.extractor.Extract(ctx, desc, inst.Name, chunks)
	att.InputTokens = out.Usage.InputTokens
	att.OutputTokens = out.Usage.OutputTokens
	att.CostUSD = out.CostUSD
	if out.Failed() {
		return nil, att, fault.New(fault.LLM, out.Failure)
	}

	att.Stage = StageParse
	parsed, err := Parse(out.Text, desc.AllowsBullets(), r.cfg.DefaultYear)
	if err != nil {
		log.Debug("pipeline: unparseable model output", zap.String("raw", out.Text))
		return nil, att, err
	}
	att.Strategy = string(parsed.Strategy)
	if len(parsed.Dropped) > 0 {
		log.Info("pipeline: dropped malformed records", zap.Strings("dropped", parsed.Dropped))
	}

	att.Stage = StageNormalize
	records, report, err := Normalize(desc.Kind, parsed.Records)
	att.Policy = string(report.Policy)
	if len(report.Skipped) > 0 {
		log.Info("pipeline: skipped non-numeric cost values", zap.Strings("skipped", report.Skipped))
	}
	if err != nil {
		return nil, att, err
	}

	att.Stage = StageDone
	att.Records = len(records)
	return records, att, nil
}

// MatchScore compares the query with the matched result name, ignoring case.
func MatchScore(query, matched string) float64 {
	if matched == "" {
		return 0
	}
	return matchr.JaroWinkler(strings.ToLower(strings.TrimSpace(query)), strings.ToLower(strings.TrimSpace(matched)), false)
}

func (r *Runner) recordAttempt(ctx context.Context, runID string, att model.Attempt) {
	if r.ledger == nil || runID == "" {
		return
	}
	if err := r.ledger.RecordAttempt(ctx, runID, att); err != nil {
		zap.L().Warn("pipeline: failed to record attempt", zap.String("run_id", runID), zap.Error(err))
	}
}

func (r *Runner) completeRun(ctx context.Context, res RunResult) {
	if r.ledger == nil || res.RunID == "" {
		return
	}
	outcome := model.RunOutcome{
		Status:   res.Status,
		Rows:     len(res.Rows),
		Attempts: len(res.Attempts),
	}
	if len(res.Rows) == 1 {
		outcome.Error = res.Rows[0].Error
	}
	if err := r.ledger.CompleteRun(context.WithoutCancel(ctx), res.RunID, outcome); err != nil {
		zap.L().Warn("pipeline: failed to complete run", zap.String("run_id", res.RunID), zap.Error(err))
	}
}
