// Package cost prices LLM token usage.
package cost

import "strings"

// Rates holds per-model pricing configuration.
type Rates struct {
	Models map[string]ModelRate `yaml:"models" mapstructure:"models"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Chat computes the cost of one chat completion. Providers report dated
// snapshot names (gpt-4.1-nano-2025-04-14), so the longest configured model
// name that prefixes the reported one is used. Unknown models cost 0.
func (c *Calculator) Chat(model string, input, output int64) float64 {
	rate, ok := c.lookup(model)
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Known reports whether the model has a configured rate.
func (c *Calculator) Known(model string) bool {
	_, ok := c.lookup(model)
	return ok
}

func (c *Calculator) lookup(model string) (ModelRate, bool) {
	if rate, ok := c.rates.Models[model]; ok {
		return rate, true
	}
	best := ""
	for name := range c.rates.Models {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return c.rates.Models[best], true
}

// Merge returns a copy of r with overrides applied per model.
func (r Rates) Merge(overrides map[string]ModelRate) Rates {
	out := Rates{Models: make(map[string]ModelRate, len(r.Models)+len(overrides))}
	for k, v := range r.Models {
		out.Models[k] = v
	}
	for k, v := range overrides {
		out.Models[k] = v
	}
	return out
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Models: map[string]ModelRate{
			"gpt-4.1-nano":      {Input: 0.10, Output: 0.40},
			"gpt-4.1-mini":      {Input: 0.40, Output: 1.60},
			"gpt-4.1":           {Input: 2.00, Output: 8.00},
			"gpt-4o-mini":       {Input: 0.15, Output: 0.60},
			"claude-haiku-4-5":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
		},
	}
}
