package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var errFlaky = NewTransientError(errors.New("503 service unavailable"), 503)

func TestDoVal_Outcomes(t *testing.T) {
	permanent := errors.New("no matching institutions found")

	tests := []struct {
		name      string
		cfg       RetryConfig
		errs      []error // per call; nil ends the sequence with success
		wantCalls int
		wantErr   error
	}{
		{name: "first try", cfg: Fixed(3, time.Millisecond), errs: []error{nil}, wantCalls: 1},
		{name: "success after retry", cfg: Fixed(3, time.Millisecond), errs: []error{errFlaky, nil}, wantCalls: 2},
		{name: "exhausted", cfg: Fixed(3, time.Millisecond), errs: []error{errFlaky, errFlaky, errFlaky}, wantCalls: 3, wantErr: errFlaky},
		{name: "permanent error not retried", cfg: Fixed(3, time.Millisecond), errs: []error{permanent}, wantCalls: 1, wantErr: permanent},
		{name: "single attempt", cfg: Fixed(1, time.Millisecond), errs: []error{errFlaky}, wantCalls: 1, wantErr: errFlaky},
		{
			name: "custom ShouldRetry",
			cfg: RetryConfig{
				MaxAttempts: 2, InitialBackoff: time.Millisecond,
				ShouldRetry: func(err error) bool { return errors.Is(err, permanent) },
			},
			errs:      []error{permanent, permanent},
			wantCalls: 2,
			wantErr:   permanent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := DoVal(context.Background(), tt.cfg, func(_ context.Context) (string, error) {
				e := tt.errs[calls]
				calls++
				if e != nil {
					return "partial", e
				}
				return "rows", nil
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != "rows" {
				t.Errorf("value = %q, want %q", got, "rows")
			}
			if tt.wantErr != nil && got != "" {
				t.Errorf("value = %q, want zero value on failure", got)
			}
		})
	}
}

func TestDoVal_OnRetry(t *testing.T) {
	var attempts []int
	cfg := Fixed(3, time.Millisecond)
	cfg.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errFlaky
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestDoVal_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	start := time.Now()
	_, err := DoVal(ctx, Fixed(5, time.Hour), func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, errFlaky
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, errFlaky) {
		t.Errorf("err = %v, want the last attempt's error", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation should not wait out the backoff")
	}
}

func TestDoVal_DefaultsApplied(t *testing.T) {
	calls := 0
	cfg := RetryConfig{InitialBackoff: time.Millisecond}
	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if calls != 3 {
		t.Errorf("calls = %d, want default of 3", calls)
	}
}

func TestBackoff(t *testing.T) {
	exp := applyDefaults(RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond})
	fixed := applyDefaults(Fixed(4, 2*time.Second))

	tests := []struct {
		name    string
		cfg     RetryConfig
		attempt int
		want    time.Duration
	}{
		{"exponential first", exp, 0, 100 * time.Millisecond},
		{"exponential second", exp, 1, 200 * time.Millisecond},
		{"exponential capped", exp, 2, 350 * time.Millisecond},
		{"fixed first", fixed, 0, 2 * time.Second},
		{"fixed third", fixed, 2, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := backoff(tt.attempt, tt.cfg); got != tt.want {
				t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestRetryLogger(t *testing.T) {
	fn := RetryLogger("pipeline", "programs", zap.String("institution", "Reed College"))
	fn(1, errFlaky)
}
