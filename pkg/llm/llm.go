// Package llm is a provider-neutral chat-completion client used for the
// extraction calls. Backends: OpenAI (and OpenAI-compatible servers) and
// Anthropic.
package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-cli/internal/resilience"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Client performs a single chat completion.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Request is one chat completion request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int64
}

// Message represents a single conversational message.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Response is the assistant's reply.
type Response struct {
	Text  string
	Model string
	Usage Usage
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates another call's usage.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}

// Config selects and configures a backend.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// New returns the client for cfg.Provider. Retries are left to the caller.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("llm: api key is required")
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// classifyStatus marks errors carrying a retryable HTTP status as transient.
func classifyStatus(err error, status int) error {
	if resilience.IsTransientHTTPStatus(status) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
