package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/task"
)

// RowSink receives rows as soon as an institution finishes. WriteRows must
// make the rows durable before returning.
type RowSink interface {
	WriteRows(rows []model.ResultRow) error
}

// InstitutionRunner runs the pipeline for a single institution.
type InstitutionRunner interface {
	Run(ctx context.Context, desc task.Descriptor, inst model.Institution) RunResult
}

// BatchConfig configures the batch driver.
type BatchConfig struct {
	// Delay is slept between institutions regardless of outcome.
	Delay time.Duration
	// Skip holds institution names to pass over, e.g. finished runs when
	// resuming.
	Skip map[string]bool
}

// BatchSummary tallies a finished batch.
type BatchSummary struct {
	Institutions int
	Skipped      int
	Rows         int
	Complete     int
	NoData       int
	NotFound     int
	Failed       int
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	Duration     time.Duration
}

// Driver iterates institutions sequentially and streams their rows to a sink.
type Driver struct {
	runner InstitutionRunner
	sink   RowSink
	cfg    BatchConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a batch Driver.
func NewDriver(runner InstitutionRunner, sink RowSink, cfg BatchConfig) *Driver {
	return &Driver{runner: runner, sink: sink, cfg: cfg, sleep: sleepCtx}
}

// Run processes every institution in order. A sink failure or a cancelled
// context stops the batch; institution failures never do.
func (d *Driver) Run(ctx context.Context, desc task.Descriptor, institutions []model.Institution) (BatchSummary, error) {
	start := time.Now()
	var sum BatchSummary

	log := zap.L().With(zap.String("task", desc.Name))
	log.Info("batch: starting", zap.Int("institutions", len(institutions)), zap.Int("skip", len(d.cfg.Skip)))

	pending := false
	for i, inst := range institutions {
		if d.cfg.Skip[inst.Name] {
			sum.Skipped++
			log.Debug("batch: skipping finished institution", zap.String("institution", inst.Name))
			continue
		}

		if pending && d.cfg.Delay > 0 {
			if err := d.sleep(ctx, d.cfg.Delay); err != nil {
				sum.Duration = time.Since(start)
				return sum, eris.Wrap(err, "batch: interrupted")
			}
		}
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			return sum, eris.Wrap(err, "batch: interrupted")
		}

		log.Info("batch: processing",
			zap.Int("index", i+1),
			zap.Int("total", len(institutions)),
			zap.String("institution", inst.Name),
		)

		res := d.runner.Run(ctx, desc, inst)
		if err := d.sink.WriteRows(res.Rows); err != nil {
			sum.Duration = time.Since(start)
			return sum, eris.Wrapf(err, "batch: write rows for %s", inst.Name)
		}
		pending = true

		sum.Institutions++
		sum.Rows += len(res.Rows)
		switch res.Status {
		case model.RunStatusComplete:
			sum.Complete++
		case model.RunStatusNoData:
			sum.NoData++
		case model.RunStatusNotFound:
			sum.NotFound++
		default:
			sum.Failed++
		}
		for _, a := range res.Attempts {
			sum.InputTokens += a.InputTokens
			sum.OutputTokens += a.OutputTokens
			sum.CostUSD += a.CostUSD
		}
	}

	sum.Duration = time.Since(start)
	log.Info("batch: complete",
		zap.Int("institutions", sum.Institutions),
		zap.Int("skipped", sum.Skipped),
		zap.Int("rows", sum.Rows),
		zap.Int("complete", sum.Complete),
		zap.Int("no_data", sum.NoData),
		zap.Int("not_found", sum.NotFound),
		zap.Int("failed", sum.Failed),
		zap.Int64("input_tokens", sum.InputTokens),
		zap.Int64("output_tokens", sum.OutputTokens),
		zap.Float64("estimated_cost_usd", sum.CostUSD),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
