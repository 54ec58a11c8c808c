package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/campus-cli/internal/cost"
	"github.com/sells-group/campus-cli/internal/model"
	"github.com/sells-group/campus-cli/internal/resilience"
	"github.com/sells-group/campus-cli/internal/task"
	"github.com/sells-group/campus-cli/pkg/llm"
)

// LLMErrorMarker prefixes every extraction failure.
const LLMErrorMarker = "[LLM ERROR]"

// ExtractionOutcome is either the model's raw text or a tagged failure.
type ExtractionOutcome struct {
	Text    string
	Failure string
	Model   string
	Usage   llm.Usage
	CostUSD float64
}

// Failed reports whether the outcome carries a failure instead of text.
func (o ExtractionOutcome) Failed() bool {
	return o.Failure != ""
}

func failure(reason string) ExtractionOutcome {
	return ExtractionOutcome{Failure: LLMErrorMarker + ": " + reason}
}

// ExtractorConfig configures extraction requests.
type ExtractorConfig struct {
	Model             string
	MaxTokens         int64
	Timeout           time.Duration
	RequestsPerMinute int
	CircuitThreshold  int
	CircuitReset      time.Duration
}

// Extractor sends chunked page sections to the language model.
type Extractor struct {
	client  llm.Client
	cfg     ExtractorConfig
	breaker *resilience.CircuitBreaker
	limiter *rate.Limiter
	costs   *cost.Calculator
}

// NewExtractor creates an Extractor. A nil calculator prices nothing.
func NewExtractor(client llm.Client, cfg ExtractorConfig, costs *cost.Calculator) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if costs == nil {
		costs = cost.NewCalculator(cost.Rates{})
	}

	cbCfg := resilience.FromCircuitConfig(cfg.CircuitThreshold, cfg.CircuitReset)
	cbCfg.ShouldTrip = resilience.IsTransient
	cbCfg.OnStateChange = resilience.StateLogger(client.Name())

	e := &Extractor{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cbCfg),
		costs:   costs,
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return e
}

// Extract issues one completion for the chunks of an institution's page
// section. It never returns an error: every failure is folded into the
// outcome's Failure field.
func (e *Extractor) Extract(ctx context.Context, desc task.Descriptor, institution string, chunks []model.PromptChunk) ExtractionOutcome {
	log := zap.L().With(
		zap.String("task", desc.Name),
		zap.String("institution", institution),
		zap.String("provider", e.client.Name()),
	)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return failure(err.Error())
		}
	}

	req := llm.Request{
		Model:       e.cfg.Model,
		System:      desc.SystemPrompt,
		Messages:    BuildMessages(institution, chunks),
		Temperature: 0,
		MaxTokens:   e.cfg.MaxTokens,
	}

	start := time.Now()
	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*llm.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		return e.client.Complete(callCtx, req)
	})
	if err != nil {
		log.Warn("extract: completion failed", zap.Int("chunks", len(chunks)), zap.Error(err))
		return failure(err.Error())
	}

	out := ExtractionOutcome{
		Text:    resp.Text,
		Model:   resp.Model,
		Usage:   resp.Usage,
		CostUSD: e.costs.Chat(resp.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens),
	}
	if strings.TrimSpace(resp.Text) == "" {
		out.Text = ""
		out.Failure = LLMErrorMarker + ": empty response"
	}

	log.Info("cost attribution",
		zap.String("model", resp.Model),
		zap.Int("chunks", len(chunks)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Float64("estimated_cost_usd", out.CostUSD),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}
